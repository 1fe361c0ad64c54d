package normalize

import (
	"strconv"
	"strings"
)

// Portuguese cardinal expansion for digit runs. Voice profiles that declare
// number_expansion get "quarenta e dois" instead of "42".

var ptUnits = []string{
	"zero", "um", "dois", "três", "quatro", "cinco", "seis", "sete", "oito", "nove",
	"dez", "onze", "doze", "treze", "catorze", "quinze", "dezesseis", "dezessete", "dezoito", "dezenove",
}

var ptTens = []string{
	"", "", "vinte", "trinta", "quarenta", "cinquenta", "sessenta", "setenta", "oitenta", "noventa",
}

var ptHundreds = []string{
	"", "cento", "duzentos", "trezentos", "quatrocentos", "quinhentos",
	"seiscentos", "setecentos", "oitocentos", "novecentos",
}

// Cardinal converts a digit run to its Portuguese cardinal. Runs that do not
// fit an int64 are returned unchanged.
func Cardinal(digits string) string {
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return digits
	}
	return cardinal(n)
}

func cardinal(n int64) string {
	if n == 0 {
		return "zero"
	}

	type scale struct {
		value    int64
		singular string
		plural   string
	}
	scales := []scale{
		{1_000_000_000_000, "um trilhão", "trilhões"},
		{1_000_000_000, "um bilhão", "bilhões"},
		{1_000_000, "um milhão", "milhões"},
	}

	var parts []string
	for _, s := range scales {
		if n < s.value {
			continue
		}
		count := n / s.value
		n %= s.value
		if count == 1 {
			parts = append(parts, s.singular)
		} else {
			parts = append(parts, belowMillion(count)+" "+s.plural)
		}
	}

	if n >= 1000 {
		count := n / 1000
		n %= 1000
		if count == 1 {
			parts = append(parts, "mil")
		} else {
			parts = append(parts, belowThousand(count)+" mil")
		}
	}

	if n > 0 {
		parts = append(parts, belowThousand(n))
	}

	return joinCardinal(parts, n)
}

// joinCardinal joins scale groups, using "e" before a final group that is
// below one hundred or an exact hundred ("mil e quinze", "dois milhões e
// duzentos") and spaces elsewhere ("mil novecentos e oitenta e quatro").
func joinCardinal(parts []string, last int64) string {
	if len(parts) == 1 {
		return parts[0]
	}
	head := strings.Join(parts[:len(parts)-1], " ")
	if last > 0 && (last < 100 || last%100 == 0) {
		return head + " e " + parts[len(parts)-1]
	}
	return head + " " + parts[len(parts)-1]
}

func belowMillion(n int64) string {
	if n >= 1000 {
		count := n / 1000
		rem := n % 1000
		var head string
		if count == 1 {
			head = "mil"
		} else {
			head = belowThousand(count) + " mil"
		}
		if rem == 0 {
			return head
		}
		return joinCardinal([]string{head, belowThousand(rem)}, rem)
	}
	return belowThousand(n)
}

func belowThousand(n int64) string {
	if n == 100 {
		return "cem"
	}
	var parts []string
	if n >= 100 {
		parts = append(parts, ptHundreds[n/100])
		n %= 100
	}
	if n >= 20 {
		tens := ptTens[n/10]
		n %= 10
		if n > 0 {
			parts = append(parts, tens+" e "+ptUnits[n])
		} else {
			parts = append(parts, tens)
		}
	} else if n > 0 {
		parts = append(parts, ptUnits[n])
	}
	return strings.Join(parts, " e ")
}
