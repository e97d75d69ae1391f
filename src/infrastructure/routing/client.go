package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"datedine/src/domain"
	"datedine/src/infrastructure/ai"
)

// Client клиент OpenRouteService: геокодирование адресов и расчет
// автомобильного маршрута между двумя точками. Повторов и откатов нет,
// каждая неудача сразу превращается в domain.ErrUnresolvable.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient создает клиент маршрутизации. Ключ берется из переменной
// окружения ROUTING_API_KEY, файл конфигурации — запасной вариант.
func NewClient(config ai.Config, log zerolog.Logger) (*Client, error) {
	apiKey := config.Routing.APIKey
	if env := os.Getenv("ROUTING_API_KEY"); env != "" {
		apiKey = env
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API ключ маршрутизации не установлен (ROUTING_API_KEY)")
	}

	return &Client{
		baseURL: config.Routing.BaseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: time.Duration(config.Routing.TimeoutSecs) * time.Second,
		},
		log: log,
	}, nil
}

// geocodeFunc позволяет подменить геокодирование кеширующей оберткой
type geocodeFunc func(ctx context.Context, text string) ([2]float64, error)

// Resolve определяет время поездки в одну сторону между двумя адресами
func (c *Client) Resolve(ctx context.Context, origin, destination string) (domain.TravelEstimate, error) {
	return c.resolve(ctx, c.geocode, origin, destination)
}

func (c *Client) resolve(ctx context.Context, geocode geocodeFunc, origin, destination string) (domain.TravelEstimate, error) {
	from, err := geocode(ctx, origin)
	if err != nil {
		return domain.TravelEstimate{}, fmt.Errorf("%w: геокодирование %q: %v", domain.ErrUnresolvable, origin, err)
	}

	to, err := geocode(ctx, destination)
	if err != nil {
		return domain.TravelEstimate{}, fmt.Errorf("%w: геокодирование %q: %v", domain.ErrUnresolvable, destination, err)
	}

	seconds, err := c.route(ctx, from, to)
	if err != nil {
		return domain.TravelEstimate{}, fmt.Errorf("%w: маршрут %q -> %q: %v", domain.ErrUnresolvable, origin, destination, err)
	}

	// Минуты с одним знаком после запятой
	minutes := math.Round(seconds/60*10) / 10

	c.log.Debug().Str("origin", origin).Str("destination", destination).
		Float64("minutes", minutes).Msg("время в пути получено")

	return domain.TravelEstimate{Minutes: minutes}, nil
}

// geocode преобразует адрес в пару координат [долгота, широта]
func (c *Client) geocode(ctx context.Context, text string) ([2]float64, error) {
	endpoint := fmt.Sprintf("%s/geocode/search?api_key=%s&text=%s",
		c.baseURL, url.QueryEscape(c.apiKey), url.QueryEscape(text))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return [2]float64{}, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return [2]float64{}, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return [2]float64{}, fmt.Errorf("статус ответа %d", resp.StatusCode)
	}

	var payload struct {
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"features"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return [2]float64{}, fmt.Errorf("ошибка парсинга JSON ответа: %w", err)
	}

	if len(payload.Features) == 0 {
		return [2]float64{}, fmt.Errorf("адрес не найден")
	}
	coords := payload.Features[0].Geometry.Coordinates
	if len(coords) < 2 {
		return [2]float64{}, fmt.Errorf("некорректные координаты в ответе")
	}

	return [2]float64{coords[0], coords[1]}, nil
}

// route запрашивает автомобильный маршрут и возвращает длительность в секундах
func (c *Client) route(ctx context.Context, from, to [2]float64) (float64, error) {
	body, err := json.Marshal(map[string]interface{}{
		"coordinates": [][2]float64{from, to},
	})
	if err != nil {
		return 0, fmt.Errorf("ошибка маршалинга JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v2/directions/driving-car", bytes.NewBuffer(body))
	if err != nil {
		return 0, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("статус ответа %d, тело: %s", resp.StatusCode, string(respBody))
	}

	var payload struct {
		Features []struct {
			Properties struct {
				Summary struct {
					Duration float64 `json:"duration"`
				} `json:"summary"`
			} `json:"properties"`
		} `json:"features"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("ошибка парсинга JSON ответа: %w", err)
	}

	if len(payload.Features) == 0 {
		return 0, fmt.Errorf("маршрут не найден")
	}

	return payload.Features[0].Properties.Summary.Duration, nil
}

// NewSession возвращает резолвер с кешем геокодирования на один запрос
// подбора. Адреса участников повторяются для каждого кандидата, кеш
// убирает лишние обращения к API, не меняя наблюдаемого поведения.
func (c *Client) NewSession() domain.TravelResolver {
	return &session{client: c, coords: make(map[string][2]float64)}
}

type session struct {
	client *Client
	mu     sync.Mutex
	coords map[string][2]float64
}

// Resolve как Client.Resolve, но геокодирование каждого адреса
// выполняется не более одного раза за сессию
func (s *session) Resolve(ctx context.Context, origin, destination string) (domain.TravelEstimate, error) {
	return s.client.resolve(ctx, s.geocode, origin, destination)
}

func (s *session) geocode(ctx context.Context, text string) ([2]float64, error) {
	s.mu.Lock()
	coords, ok := s.coords[text]
	s.mu.Unlock()
	if ok {
		return coords, nil
	}

	coords, err := s.client.geocode(ctx, text)
	if err != nil {
		return [2]float64{}, err
	}

	s.mu.Lock()
	s.coords[text] = coords
	s.mu.Unlock()

	return coords, nil
}
