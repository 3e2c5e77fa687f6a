package logsvc

import (
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/trezcool/pogil/core"
)

func TestStdLogger(t *testing.T) {
	tests := []struct {
		name string
		log  func(l core.Logger)
		want string
	}{
		{
			name: "parser warning",
			log: func(l core.Logger) {
				l.Warn("sheet.Parse", map[string]interface{}{"warning": `stray \endquestion`, "line": 4, "mode": "normal"})
			},
			want: "WARN sheet.Parse line=4 mode=normal warning=stray \\endquestion\n",
		},
		{
			name: "error with user",
			log: func(l core.Logger) {
				l.Error("responses.Submit", errors.New("boom"), core.UserID("42"))
			},
			want: "ERROR responses.Submit error=\"boom\" user=42\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			tt.log(NewStdLogger(log.New(&out, "", 0)))
			if out.String() != tt.want {
				t.Errorf("logged %q, want %q", out.String(), tt.want)
			}
		})
	}
}
