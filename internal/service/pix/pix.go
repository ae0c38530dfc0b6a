// Package pix builds static BR Code payloads (EMV merchant presented QR) for PIX charges
package pix

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

const (
	gui          = "br.gov.bcb.pix"
	maxFieldLen  = 99
	maxNameLen   = 25
	maxCityLen   = 15
	maxTxIDLen   = 25
	currencyBRL  = "986"
	countryCode  = "BR"
	mccUndefined = "0000"
)

type Charge struct {
	Key          string // receiver PIX key
	MerchantName string
	MerchantCity string
	Amount       decimal.Decimal
	TxID         string
}

// Payload renders "copia e cola" string, CRC16 checksum included
func Payload(c Charge) (string, error) {
	if c.Key == "" {
		return "", fmt.Errorf("pix key is required")
	}
	if !c.Amount.IsPositive() {
		return "", fmt.Errorf("pix amount must be positive, got %s", c.Amount)
	}

	account := field("00", gui) + field("01", c.Key)
	if len(account) > maxFieldLen {
		return "", fmt.Errorf("pix key is too long")
	}

	var b strings.Builder
	b.WriteString(field("00", "01"))
	b.WriteString(field("26", account))
	b.WriteString(field("52", mccUndefined))
	b.WriteString(field("53", currencyBRL))
	b.WriteString(field("54", c.Amount.StringFixed(2)))
	b.WriteString(field("58", countryCode))
	b.WriteString(field("59", clean(c.MerchantName, maxNameLen, "CASHBACKMART")))
	b.WriteString(field("60", clean(c.MerchantCity, maxCityLen, "SAO PAULO")))
	b.WriteString(field("62", field("05", clean(c.TxID, maxTxIDLen, "***"))))

	// checksum covers its own id and length
	b.WriteString("6304")
	b.WriteString(fmt.Sprintf("%04X", CRC16(b.String())))

	return b.String(), nil
}

func field(id string, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

// Keep ASCII letters, digits and spaces only, upper-cased and truncated
func clean(s string, limit int, fallback string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r > unicode.MaxASCII:
			return -1
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ':
			return unicode.ToUpper(r)
		default:
			return -1
		}
	}, s)

	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return fallback
	}
	if len(cleaned) > limit {
		cleaned = cleaned[:limit]
	}
	return cleaned
}

// CRC16/CCITT-FALSE: poly 0x1021, init 0xFFFF, no reflection
func CRC16(s string) uint16 {
	crc := uint16(0xFFFF)
	for i := 0; i < len(s); i++ {
		crc ^= uint16(s[i]) << 8
		for range 8 {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
