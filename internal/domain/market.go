package domain

import "time"

// Market representa un mercado Up/Down de 15 minutos en Polymarket.
// Se construye de nuevo en cada ciclo de scan; no se persiste.
type Market struct {
	ConditionID string
	Question    string
	Slug        string
	EndTime     time.Time
	Tokens      [2]Token
	NegRisk     bool
	TickSize    float64
	Asset       string // símbolo de referencia, p.ej. "BTC"
}

// Token es uno de los dos lados del mercado (Up/Down).
type Token struct {
	TokenID string
	Outcome string // "Up" | "Down"
}

// UpToken devuelve el token Up del mercado.
func (m Market) UpToken() Token {
	for _, t := range m.Tokens {
		if t.Outcome == "Up" {
			return t
		}
	}
	return m.Tokens[0]
}

// DownToken devuelve el token Down del mercado.
func (m Market) DownToken() Token {
	for _, t := range m.Tokens {
		if t.Outcome == "Down" {
			return t
		}
	}
	return m.Tokens[1]
}

// MinutesLeft devuelve los minutos hasta la resolución respecto a now.
func (m Market) MinutesLeft(now time.Time) float64 {
	return m.EndTime.Sub(now).Minutes()
}

// EffectiveTickSize devuelve el tick size del mercado o 0.01 por defecto.
func (m Market) EffectiveTickSize() float64 {
	if m.TickSize > 0 {
		return m.TickSize
	}
	return 0.01
}

// TruncateQuestion devuelve la pregunta truncada a maxLen caracteres,
// con el conditionID como fallback si está vacía.
func TruncateQuestion(question, conditionID string, maxLen int) string {
	q := question
	if q == "" {
		if len(conditionID) > 20 {
			q = conditionID[:20] + "..."
		} else {
			q = conditionID
		}
	}
	if len(q) > maxLen {
		q = q[:maxLen-3] + "..."
	}
	return q
}
