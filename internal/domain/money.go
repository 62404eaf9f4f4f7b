package domain

import (
	"fmt"
	"strings"
	"time"
)

// Money — денежная сумма в минимальных единицах (копейках).
// В хранилище суммы лежат как NUMERIC(18,2); конвертация между
// десятичной записью и Money сосредоточена здесь.
type Money int64

const moneyScale = 100

// ParseMoney разбирает десятичную запись суммы ("1234.50", "-7", "0.05").
// Дробная часть длиннее двух знаков отклоняется: хранилище не несёт
// большей точности, а молчаливое округление скрывало бы ошибку источника.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrMoneyInvalid)
	}

	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	if intPart == "" && fracPart == "" {
		return 0, fmt.Errorf("%w: %q", ErrMoneyInvalid, s)
	}
	if intPart == "" {
		intPart = "0"
	}
	if hasFrac && len(fracPart) > 2 {
		return 0, fmt.Errorf("%w: %q has more than two fractional digits", ErrMoneyInvalid, s)
	}
	for len(fracPart) < 2 {
		fracPart += "0"
	}

	var units int64
	for _, r := range intPart {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrMoneyInvalid, s)
		}
		units = units*10 + int64(r-'0')
	}
	var cents int64
	for _, r := range fracPart {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrMoneyInvalid, s)
		}
		cents = cents*10 + int64(r-'0')
	}

	minor := units*moneyScale + cents
	if negative {
		minor = -minor
	}
	return Money(minor), nil
}

// String возвращает десятичную запись суммы, пригодную для NUMERIC-колонки
// и для API.
func (m Money) String() string {
	minor := int64(m)
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/moneyScale, minor%moneyScale)
}

// NormalizeTime приводит метку времени к форме, в которой она
// возвращается из TIMESTAMPTZ: UTC с микросекундной точностью.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
