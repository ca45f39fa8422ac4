package projects

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-gateway/middleware/security/sanitize"
)

func payload(t *testing.T, s string) sanitize.Value {
	t.Helper()
	v, err := sanitize.Payload([]byte(s))
	require.NoError(t, err)
	return v
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"ok", `{"title":"Loja virtual","description":"x","price":10}`, ""},
		{"free", `{"title":"Loja","price":0}`, ""},
		{"not object", `["a"]`, "Invalid data format"},
		{"missing title", `{"price":1}`, "Title must be at least 3 characters long"},
		{"short title", `{"title":"  ab  "}`, "Title must be at least 3 characters long"},
		{"title not string", `{"title":123}`, "Title must be at least 3 characters long"},
		{"long title", `{"title":"` + strings.Repeat("a", 101) + `"}`, "Title cannot exceed 100 characters"},
		{"description type", `{"title":"Loja","description":42}`, "Description must be a string"},
		{"description null", `{"title":"Loja","description":null}`, ""},
		{"long description", `{"title":"Loja","description":"` + strings.Repeat("d", 2001) + `"}`, "Description cannot exceed 2000 characters"},
		{"negative price", `{"title":"Loja","price":-1}`, "Price must be a non-negative number"},
		{"price string", `{"title":"Loja","price":"10"}`, "Price must be a non-negative number"},
		{"title at limit multibyte", `{"title":"` + strings.Repeat("ç", 100) + `"}`, ""},
		{"title over limit multibyte", `{"title":"` + strings.Repeat("ç", 101) + `"}`, "Title cannot exceed 100 characters"},
		{"short multibyte title", `{"title":" ção "}`, ""},
		{"description at limit", `{"title":"Loja","description":"` + strings.Repeat("é", 2000) + `"}`, ""},
		{"fractional price", `{"title":"Loja","price":0.01}`, ""},
		{"tiny negative price", `{"title":"Loja","price":-0.01}`, "Price must be a non-negative number"},
		{"title checked before description", `{"title":"a","description":42}`, "Title must be at least 3 characters long"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(payload(t, tc.body))
			if tc.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.want, err.Error())
		})
	}
}

func TestValidate_KeysAreSanitizedBeforeValidation(t *testing.T) {
	// a chave "<title>" chega ao validador como "title"
	assert.NoError(t, Validate(payload(t, `{"<title>":"Loja"}`)))
}
