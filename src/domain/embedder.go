package domain

import "context"

// Embedder преобразует тексты в векторы фиксированной размерности.
// Конкретный провайдер внедряется снаружи, чтобы движок подбора
// не зависел от выбранной модели.
type Embedder interface {
	EmbedTexts(texts []string) ([][]float32, error)
}

// TravelResolver определяет время поездки в одну сторону между двумя
// адресами в свободной форме. Любая причина неудачи возвращается как
// ошибка, оборачивающая ErrUnresolvable.
type TravelResolver interface {
	Resolve(ctx context.Context, origin, destination string) (TravelEstimate, error)
}

// SessionResolver умеет создавать резолвер с кешем геокодирования,
// живущим в рамках одного запроса на подбор.
type SessionResolver interface {
	TravelResolver
	NewSession() TravelResolver
}
