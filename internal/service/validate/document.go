package validate

import (
	"crypto/rand"
	"math/big"
	"strings"
)

type DocumentKind string

const (
	CPF     DocumentKind = "CPF"
	CNPJ    DocumentKind = "CNPJ"
	Invalid DocumentKind = "Invalid"
)

var (
	cpfWeights1  = []int{10, 9, 8, 7, 6, 5, 4, 3, 2}
	cpfWeights2  = []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights1 = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights2 = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// Document checks CPF or CNPJ check digits
// Input must contain digits only (see StripDocument), the kind is chosen by length
func Document(digits string) DocumentKind {
	d, ok := toDigits(digits)
	if !ok || repeated(d) {
		return Invalid
	}

	switch len(d) {
	case 11:
		if checkDigits(d[:9], cpfWeights1, cpfWeights2) == [2]int{d[9], d[10]} {
			return CPF
		}
	case 14:
		if checkDigits(d[:12], cnpjWeights1, cnpjWeights2) == [2]int{d[12], d[13]} {
			return CNPJ
		}
	}

	return Invalid
}

// Remove formatting punctuation: "111.444.777-35" -> "11144477735"
func StripDocument(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '-', '/', ' ':
			return -1
		default:
			return r
		}
	}, s)
}

func GenerateCPF() string {
	return generate(9, cpfWeights1, cpfWeights2)
}

func GenerateCNPJ() string {
	return generate(12, cnpjWeights1, cnpjWeights2)
}

func generate(base int, w1 []int, w2 []int) string {
	for {
		d := make([]int, base)
		for i := range d {
			n, err := rand.Int(rand.Reader, big.NewInt(10))
			if err != nil {
				panic(err)
			}
			d[i] = int(n.Int64())
		}
		if repeated(d) {
			continue
		}

		check := checkDigits(d, w1, w2)
		d = append(d, check[0], check[1])

		var b strings.Builder
		for _, v := range d {
			b.WriteByte(byte('0' + v))
		}
		return b.String()
	}
}

// Two check digits for base digits: second pass includes the first computed digit
func checkDigits(base []int, w1 []int, w2 []int) [2]int {
	first := mod11(base, w1)
	second := mod11(append(append([]int{}, base...), first), w2)
	return [2]int{first, second}
}

func mod11(d []int, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += d[i] * w
	}

	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

func toDigits(s string) ([]int, bool) {
	d := make([]int, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return nil, false
		}
		d = append(d, int(c-'0'))
	}
	return d, true
}

func repeated(d []int) bool {
	if len(d) == 0 {
		return true
	}
	for _, v := range d[1:] {
		if v != d[0] {
			return false
		}
	}
	return true
}
