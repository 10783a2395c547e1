// Package validation содержит функции валидации входных данных.
package validation

import (
	"strconv"
	"strings"
)

// IsValidEmail проверяет, что строка похожа на адрес электронной почты.
// Достаточно наличия локальной части, символа @ и домена с точкой.
func IsValidEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	if strings.Contains(domain, "@") {
		return false
	}
	dot := strings.Index(domain, ".")
	return dot > 0 && dot < len(domain)-1
}

// ParsePrice разбирает цену из строки формы.
// Возвращает false, если строка пуста, не является числом или число отрицательное.
func ParsePrice(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// CoercePrice разбирает цену при обновлении объявления.
// Нечитаемое или отрицательное значение превращается в 0 — поведение
// исходного приложения при редактировании, сохранено намеренно.
func CoercePrice(s string) float64 {
	v, ok := ParsePrice(s)
	if !ok {
		return 0
	}
	return v
}
