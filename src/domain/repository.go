package domain

// RestaurantRepository интерфейс для работы с корпусом ресторанов
type RestaurantRepository interface {
	// SaveRestaurant сохраняет ресторан вместе с вектором его отзыва
	SaveRestaurant(r Restaurant, embedding []float32) error

	// GetAllRestaurants возвращает все рестораны и их векторы в одном порядке
	GetAllRestaurants() ([]Restaurant, [][]float32, error)

	// DeleteRestaurant удаляет ресторан по ID
	DeleteRestaurant(id string) error

	// Close закрывает соединение с хранилищем
	Close() error
}
