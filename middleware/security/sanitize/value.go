package sanitize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Kind é o tipo de um Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value é um valor JSON fechado: null, bool, número, string, lista ou mapa
// ordenado. O zero value é null.
type Value struct {
	kind Kind
	b    bool
	num  json.Number
	str  string
	arr  []Value
	obj  *Map
}

func Null() Value                   { return Value{} }
func NewBool(b bool) Value          { return Value{kind: KindBool, b: b} }
func NewNumber(n json.Number) Value { return Value{kind: KindNumber, num: n} }
func NewString(s string) Value      { return Value{kind: KindString, str: s} }
func NewArray(items ...Value) Value {
	return Value{kind: KindArray, arr: items}
}

func NewFloat(f float64) Value {
	return NewNumber(json.Number(strconv.FormatFloat(f, 'f', -1, 64)))
}

func FromMap(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: KindObject, obj: m}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

func (v Value) Number() (json.Number, bool) { return v.num, v.kind == KindNumber }

func (v Value) Float64() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	f, err := v.num.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}

func (v Value) Array() ([]Value, bool) { return v.arr, v.kind == KindArray }

func (v Value) Map() (*Map, bool) { return v.obj, v.kind == KindObject }

// Get é um atalho para Map().Get em objetos. Em outros tipos retorna false.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject || v.obj == nil {
		return Value{}, false
	}
	return v.obj.Get(key)
}

func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		if v.num == "" {
			buf.WriteByte('0')
			return nil
		}
		buf.WriteString(v.num.String())
	case KindString:
		b, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		if v.obj != nil {
			for i, k := range v.obj.keys {
				if i > 0 {
					buf.WriteByte(',')
				}
				kb, err := json.Marshal(k)
				if err != nil {
					return err
				}
				buf.Write(kb)
				buf.WriteByte(':')
				if err := v.obj.vals[k].encode(buf); err != nil {
					return err
				}
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("sanitize: unknown kind %d", v.kind)
	}
	return nil
}

// Map é um objeto JSON que preserva a ordem da primeira ocorrência das chaves.
type Map struct {
	keys []string
	vals map[string]Value
}

func NewMap() *Map {
	return &Map{vals: make(map[string]Value)}
}

// Set grava key. Chave repetida mantém a posição original e troca o valor.
func (m *Map) Set(key string, v Value) {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

func (m *Map) Get(key string) (Value, bool) {
	v, ok := m.vals[key]
	return v, ok
}

func (m *Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

func (m *Map) Len() int { return len(m.keys) }

// MaxDecodeDepth é a profundidade máxima que Decode materializa. Objetos e
// listas mais fundos são consumidos sem recursão e viram {}, o mesmo
// resultado que Object dá com DefaultMaxDepth.
const MaxDecodeDepth = DefaultMaxDepth

// Decode interpreta data como um único valor JSON, preservando a ordem das
// chaves. Conteúdo depois do valor é erro. A pilha usada é limitada por
// MaxDecodeDepth, qualquer que seja o aninhamento da entrada.
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec, 0)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, errors.New("sanitize: unexpected data after JSON value")
	}
	return v, nil
}

func nextToken(dec *json.Decoder) (json.Token, error) {
	tok, err := dec.Token()
	if err == io.EOF {
		return nil, io.ErrUnexpectedEOF
	}
	return tok, err
}

func decodeValue(dec *json.Decoder, depth int) (Value, error) {
	tok, err := nextToken(dec)
	if err != nil {
		return Value{}, err
	}

	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return NewBool(t), nil
	case json.Number:
		return NewNumber(t), nil
	case string:
		return NewString(t), nil
	case json.Delim:
		if (t == '{' || t == '[') && depth >= MaxDecodeDepth {
			if err := skipContainer(dec); err != nil {
				return Value{}, err
			}
			return FromMap(NewMap()), nil
		}
		switch t {
		case '{':
			m := NewMap()
			for dec.More() {
				kt, err := nextToken(dec)
				if err != nil {
					return Value{}, err
				}
				key, ok := kt.(string)
				if !ok {
					return Value{}, fmt.Errorf("sanitize: unexpected object key %v", kt)
				}
				item, err := decodeValue(dec, depth+1)
				if err != nil {
					return Value{}, err
				}
				m.Set(key, item)
			}
			if _, err := nextToken(dec); err != nil {
				return Value{}, err
			}
			return FromMap(m), nil
		case '[':
			items := []Value{}
			for dec.More() {
				item, err := decodeValue(dec, depth+1)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := nextToken(dec); err != nil {
				return Value{}, err
			}
			return NewArray(items...), nil
		}
	}
	return Value{}, fmt.Errorf("sanitize: unexpected token %v", tok)
}

// skipContainer consome o restante de um objeto ou lista já aberto, num
// laço, validando a sintaxe pelo próprio Decoder.
func skipContainer(dec *json.Decoder) error {
	open := 1
	for open > 0 {
		tok, err := nextToken(dec)
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				open++
			case '}', ']':
				open--
			}
		}
	}
	return nil
}
