package application

import (
	"context"

	"datedine/src/domain"
)

// MatchService интерфейс сервиса подбора ресторанов для пары
type MatchService interface {
	// Match подбирает рестораны по атмосфере и бюджетам времени обоих участников
	Match(ctx context.Context, req domain.MatchRequest) (*domain.MatchResult, error)

	// GetAllRestaurants возвращает весь загруженный корпус
	GetAllRestaurants() ([]domain.Restaurant, error)
}
