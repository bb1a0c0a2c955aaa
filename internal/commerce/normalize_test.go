package commerce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeList(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantItems []string
		wantNext  string
		wantErr   bool
	}{
		{name: "bare array", body: `[{"id":"1"},{"id":"2"}]`, wantItems: []string{`{"id":"1"}`, `{"id":"2"}`}},
		{name: "empty array", body: `[]`, wantItems: []string{}},
		{
			name:      "results wrapper with next",
			body:      `{"count":3,"next":"https://api/orders/?page=2","previous":null,"results":[{"id":"1"}]}`,
			wantItems: []string{`{"id":"1"}`},
			wantNext:  "https://api/orders/?page=2",
		},
		{name: "results wrapper last page", body: `{"next":null,"results":[{"id":"9"}]}`, wantItems: []string{`{"id":"9"}`}},
		{name: "data wrapper", body: `{"data":[1,2,3]}`, wantItems: []string{`1`, `2`, `3`}},
		{name: "null data", body: `{"data":null}`, wantItems: []string{}},
		{name: "null body", body: `null`, wantItems: []string{}},
		{name: "empty body", body: ``, wantItems: []string{}},
		{name: "whitespace body", body: " \n", wantItems: []string{}},
		{name: "object without list", body: `{"detail":"nothing"}`, wantItems: []string{}},
		{name: "results not array", body: `{"results":{"id":"1"}}`, wantErr: true},
		{name: "scalar", body: `"nope"`, wantErr: true},
		{name: "truncated", body: `[{"id":"1"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeList([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			items := make([]string, len(got.Items))
			for i, raw := range got.Items {
				items[i] = raw.String()
			}
			assert.Equal(t, tt.wantItems, items)
			assert.Equal(t, tt.wantNext, got.Next)
		})
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "Address not found.", errorMessage([]byte(`{"detail":"Address not found."}`), 404))
	assert.Equal(t, "bad coupon", errorMessage([]byte(`{"code":7,"message":"bad coupon"}`), 400))
	assert.Equal(t, "upstream exploded", errorMessage([]byte("upstream exploded\n"), 502))
	assert.Equal(t, "Internal Server Error", errorMessage(nil, 500))
	assert.Equal(t, "Bad Request", errorMessage([]byte(`{"detail":42}`), 400))
}
