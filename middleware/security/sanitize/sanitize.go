// Package sanitize limpa payloads JSON não confiáveis antes que a lógica de
// negócio os veja.
//
// A remoção de '<' e '>' é uma mitigação básica de injeção de script e não
// substitui o encoding na saída.
package sanitize

import (
	"regexp"
	"strings"
)

const (
	MaxStringLength = 10000
	MaxArrayItems   = 100
	MaxObjectKeys   = 50
	DefaultMaxDepth = 10
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var angleBrackets = strings.NewReplacer("<", "", ">", "")

// String remove espaços das pontas, tira '<' e '>' e corta em
// MaxStringLength caracteres.
func String(s string) string {
	s = angleBrackets.Replace(strings.TrimSpace(s))
	if len(s) <= MaxStringLength {
		return s
	}
	r := []rune(s)
	if len(r) > MaxStringLength {
		r = r[:MaxStringLength]
	}
	return string(r)
}

// StringOf aplica String quando v é string. Qualquer outro tipo vira "".
func StringOf(v Value) string {
	s, ok := v.Str()
	if !ok {
		return ""
	}
	return String(s)
}

// Email devolve o email normalizado (minúsculo) ou "" quando inválido.
// "" significa ausente/inválido, nunca um email vazio válido.
func Email(s string) string {
	s = strings.ToLower(String(s))
	if !emailPattern.MatchString(s) {
		return ""
	}
	return s
}

func EmailOf(v Value) string {
	s, ok := v.Str()
	if !ok {
		return ""
	}
	return Email(s)
}

// Object percorre v recursivamente limitando profundidade e tamanho:
// listas ficam com no máximo MaxArrayItems itens, objetos com no máximo
// MaxObjectKeys chaves (as primeiras), chaves passam por String e chaves
// vazias são descartadas. Quando maxDepth chega a zero, objetos e listas
// viram {}. Escalares passam sem alteração.
func Object(v Value, maxDepth int) Value {
	switch v.Kind() {
	case KindArray:
		if maxDepth <= 0 {
			return FromMap(NewMap())
		}
		items, _ := v.Array()
		if len(items) > MaxArrayItems {
			items = items[:MaxArrayItems]
		}
		out := make([]Value, len(items))
		for i, item := range items {
			out[i] = Object(item, maxDepth-1)
		}
		return NewArray(out...)

	case KindObject:
		out := NewMap()
		if maxDepth <= 0 {
			return FromMap(out)
		}
		m, _ := v.Map()
		if m == nil {
			return FromMap(out)
		}
		kept := 0
		for _, k := range m.keys {
			if kept >= MaxObjectKeys {
				break
			}
			sk := String(k)
			if sk == "" {
				continue
			}
			out.Set(sk, Object(m.vals[k], maxDepth-1))
			kept++
		}
		return FromMap(out)
	}
	return v
}

// Payload decodifica e sanitiza com DefaultMaxDepth.
func Payload(data []byte) (Value, error) {
	v, err := Decode(data)
	if err != nil {
		return Value{}, err
	}
	return Object(v, DefaultMaxDepth), nil
}
