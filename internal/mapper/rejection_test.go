package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRejection(t *testing.T) {
	cases := []struct {
		name string
		body string
		want Rejection
	}{
		{"string error", `{"error":"Cannot book a past time slot"}`, Rejection{Status: 400, Message: "Cannot book a past time slot"}},
		{"object error", `{"error":{"message":"nope","code":"CROSS_DAY"}}`, Rejection{Status: 400, Message: "nope", Code: "CROSS_DAY"}},
		{"top level code", `{"code":"PAST_TIME_SLOT","message":"late"}`, Rejection{Status: 400, Message: "late", Code: "PAST_TIME_SLOT"}},
		{"plain text", `Bad Request`, Rejection{Status: 400, Message: "Bad Request"}},
		{"empty", ``, Rejection{Status: 400}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseRejection(400, []byte(tc.body)))
		})
	}
}
