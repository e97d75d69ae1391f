package infrastructure

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"datedine/src/domain"
)

// SQLiteRestaurantRepository реализация репозитория с использованием SQLite.
// Векторы отзывов хранятся рядом с ресторанами как BLOB (float32 подряд),
// считаются один раз при импорте и дальше только читаются.
type SQLiteRestaurantRepository struct {
	db *sqlx.DB
}

// NewSQLiteRestaurantRepository создает новый экземпляр репозитория
func NewSQLiteRestaurantRepository(dbPath string) (*SQLiteRestaurantRepository, error) {
	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к базе данных: %w", err)
	}

	repo := &SQLiteRestaurantRepository{db: db}
	err = repo.initSchema()
	if err != nil {
		return nil, fmt.Errorf("не удалось инициализировать схему: %w", err)
	}

	return repo, nil
}

// initSchema инициализирует схему базы данных
func (r *SQLiteRestaurantRepository) initSchema() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS restaurants (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			review TEXT NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			embedding BLOB NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_restaurants_name ON restaurants(name)`,
	}

	for _, tableSQL := range tables {
		_, err := r.db.Exec(tableSQL)
		if err != nil {
			return fmt.Errorf("ошибка при создании таблицы: %w", err)
		}
	}

	return nil
}

// SaveRestaurant сохраняет ресторан вместе с вектором его отзыва
func (r *SQLiteRestaurantRepository) SaveRestaurant(restaurant domain.Restaurant, embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("у ресторана %q нет вектора отзыва", restaurant.Name)
	}

	_, err := r.db.Exec(
		`INSERT INTO restaurants (id, name, review, location, embedding) VALUES (?, ?, ?, ?, ?)`,
		restaurant.ID, restaurant.Name, restaurant.Review, restaurant.Location,
		domain.EncodeVector(embedding),
	)
	if err != nil {
		return fmt.Errorf("не удалось вставить ресторан: %w", err)
	}

	return nil
}

// GetAllRestaurants возвращает все рестораны и их векторы в одном порядке
func (r *SQLiteRestaurantRepository) GetAllRestaurants() ([]domain.Restaurant, [][]float32, error) {
	// rowid сохраняет порядок вставки
	rows, err := r.db.Queryx(`SELECT id, name, review, location, embedding FROM restaurants ORDER BY rowid`)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer rows.Close()

	var restaurants []domain.Restaurant
	var embeddings [][]float32

	for rows.Next() {
		var restaurant domain.Restaurant
		var blob []byte

		err := rows.Scan(&restaurant.ID, &restaurant.Name, &restaurant.Review, &restaurant.Location, &blob)
		if err != nil {
			return nil, nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}

		embedding, err := domain.DecodeVector(blob)
		if err != nil {
			return nil, nil, fmt.Errorf("ошибка декодирования вектора ресторана %q: %w", restaurant.Name, err)
		}

		restaurants = append(restaurants, restaurant)
		embeddings = append(embeddings, embedding)
	}

	return restaurants, embeddings, nil
}

// DeleteRestaurant удаляет ресторан по ID
func (r *SQLiteRestaurantRepository) DeleteRestaurant(id string) error {
	_, err := r.db.Exec(`DELETE FROM restaurants WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления ресторана: %w", err)
	}
	return nil
}

// ImportCSV загружает корпус из CSV файла и сразу векторизует отзывы.
// Обязательные колонки: name, review. Колонка location необязательна.
// Возвращает количество импортированных ресторанов.
func (r *SQLiteRestaurantRepository) ImportCSV(path string, embedder domain.Embedder) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("ошибка открытия CSV файла: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения CSV: %w", err)
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("CSV файл пуст")
	}

	// Находим колонки по заголовку
	columns := make(map[string]int)
	for i, name := range records[0] {
		columns[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range []string{"name", "review"} {
		if _, ok := columns[required]; !ok {
			return 0, fmt.Errorf("в CSV нет обязательной колонки %q", required)
		}
	}
	locationCol, hasLocation := columns["location"]

	var restaurants []domain.Restaurant
	var reviews []string
	for _, record := range records[1:] {
		name := strings.TrimSpace(record[columns["name"]])
		review := strings.TrimSpace(record[columns["review"]])
		if name == "" || review == "" {
			continue
		}

		location := ""
		if hasLocation && locationCol < len(record) {
			location = strings.TrimSpace(record[locationCol])
		}

		restaurants = append(restaurants, domain.Restaurant{
			ID:       uuid.NewString(),
			Name:     name,
			Review:   review,
			Location: location,
		})
		reviews = append(reviews, review)
	}

	if len(restaurants) == 0 {
		return 0, nil
	}

	// Один вызов провайдера на весь корпус
	embeddings, err := embedder.EmbedTexts(reviews)
	if err != nil {
		return 0, fmt.Errorf("не удалось векторизовать отзывы: %w", err)
	}
	if len(embeddings) != len(restaurants) {
		return 0, fmt.Errorf("провайдер вернул %d векторов вместо %d", len(embeddings), len(restaurants))
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("не удалось начать транзакцию: %w", err)
	}
	defer tx.Rollback()

	for i, restaurant := range restaurants {
		_, err = tx.Exec(
			`INSERT INTO restaurants (id, name, review, location, embedding) VALUES (?, ?, ?, ?, ?)`,
			restaurant.ID, restaurant.Name, restaurant.Review, restaurant.Location,
			domain.EncodeVector(embeddings[i]),
		)
		if err != nil {
			return 0, fmt.Errorf("не удалось вставить ресторан %q: %w", restaurant.Name, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("не удалось зафиксировать транзакцию: %w", err)
	}

	return len(restaurants), nil
}

// Close закрывает соединение с базой данных
func (r *SQLiteRestaurantRepository) Close() error {
	return r.db.Close()
}
