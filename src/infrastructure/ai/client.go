package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Config структура конфигурации приложения
type Config struct {
	AI struct {
		BaseURL     string `yaml:"base_url"`
		APIKey      string `yaml:"api_key"`
		Model       string `yaml:"model"`
		TimeoutSecs int    `yaml:"timeout"` // Секунды
	} `yaml:"ai"`
	Routing struct {
		BaseURL     string `yaml:"base_url"`
		APIKey      string `yaml:"api_key"`
		TimeoutSecs int    `yaml:"timeout"` // Секунды
	} `yaml:"routing"`
	Matching struct {
		TopK          int     `yaml:"top_k"`
		MinDatingTime float64 `yaml:"min_dating_time"`
		MaxResults    int     `yaml:"max_results"`
		DefaultCity   string  `yaml:"default_city"`
	} `yaml:"matching"`
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig загружает конфигурацию из YAML файла
func LoadConfig(path string) (Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
	}

	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return config, fmt.Errorf("ошибка парсинга YAML: %w", err)
	}

	return config, nil
}

// AIClient клиент провайдера векторных представлений текста
type AIClient struct {
	config Config
	client *http.Client
}

// NewAIClient создает новый экземпляр AI клиента.
// Переменные окружения имеют приоритет над файлом конфигурации,
// чтобы ключ не хранился в репозитории.
func NewAIClient(config Config) *AIClient {
	if apiKey := os.Getenv("AI_API_KEY"); apiKey != "" {
		config.AI.APIKey = apiKey
	}
	if model := os.Getenv("AI_MODEL"); model != "" {
		config.AI.Model = model
	}
	if baseURL := os.Getenv("AI_BASE_URL"); baseURL != "" {
		config.AI.BaseURL = baseURL
	}

	httpClient := &http.Client{
		Timeout: time.Duration(config.AI.TimeoutSecs) * time.Second,
	}

	return &AIClient{
		config: config,
		client: httpClient,
	}
}

// EmbedTexts строит векторные представления для набора текстов одним
// запросом к API. Векторы возвращаются в порядке исходных текстов.
func (c *AIClient) EmbedTexts(texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("нет текстов для векторизации")
	}

	payload := map[string]interface{}{
		"model": c.config.AI.Model,
		"input": texts,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ошибка маршалинга JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), "POST", c.config.AI.BaseURL+"/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.config.AI.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ошибка API: статус %d, тело: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	var response struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}

	err = json.Unmarshal(body, &response)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга JSON ответа: %w", err)
	}

	if len(response.Data) != len(texts) {
		return nil, fmt.Errorf("API вернул %d векторов вместо %d", len(response.Data), len(texts))
	}

	// API не обязан сохранять порядок, восстанавливаем его по индексу
	sort.Slice(response.Data, func(i, j int) bool {
		return response.Data[i].Index < response.Data[j].Index
	})

	vectors := make([][]float32, len(response.Data))
	for i, item := range response.Data {
		if len(item.Embedding) == 0 {
			return nil, fmt.Errorf("API вернул пустой вектор для текста %d", item.Index)
		}
		vectors[i] = item.Embedding
	}

	return vectors, nil
}
