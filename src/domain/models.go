package domain

import (
	"errors"
	"time"
)

// ErrUnresolvable означает, что время в пути до кандидата определить не удалось
// (геокодирование не нашло адрес, маршрут не построен, сетевая ошибка).
// Кандидат с такой ошибкой молча исключается из подбора.
var ErrUnresolvable = errors.New("время в пути не определено")

// Restaurant представляет ресторан из корпуса с текстом отзыва для семантического поиска
type Restaurant struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Review    string    `json:"review" db:"review"`
	Location  string    `json:"location" db:"location"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// LocationOrDefault возвращает адрес ресторана, либо "<имя>, <город>", если адрес не задан
func (r Restaurant) LocationOrDefault(city string) string {
	if r.Location != "" {
		return r.Location
	}
	return r.Name + ", " + city
}

// Participant описывает одного из двух участников встречи
type Participant struct {
	Vibe          string  `json:"vibe" validate:"required"`
	Origin        string  `json:"origin" validate:"required"`
	BudgetMinutes float64 `json:"budget_minutes" validate:"min=30,max=300"`
}

// MatchRequest запрос на подбор ресторана для пары
type MatchRequest struct {
	Users [2]Participant `json:"users" validate:"dive"`
}

// Recommendation итоговая рекомендация: ресторан и расчет времени на свидание.
// Временные поля пустые, если рекомендация пришла из резервного списка.
type Recommendation struct {
	Name                string  `json:"name"`
	Review              string  `json:"review"`
	Similarity          float64 `json:"similarity"`
	RoundTripUser1      float64 `json:"round_trip_user1,omitempty"`
	RoundTripUser2      float64 `json:"round_trip_user2,omitempty"`
	EffectiveDatingTime float64 `json:"effective_dating_time,omitempty"`
}

// MatchResult результат подбора. Fallback=true, когда ни один кандидат не прошел
// фильтр по времени и возвращается список лучших по атмосфере без временных оценок.
type MatchResult struct {
	Recommendations []Recommendation `json:"recommendations"`
	Fallback        bool             `json:"fallback"`
}

// TravelEstimate время поездки в одну сторону в минутах
type TravelEstimate struct {
	Minutes float64 `json:"minutes"`
}
