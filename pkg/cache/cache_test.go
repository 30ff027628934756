package cache

import (
	"net/url"
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "no query",
			key:  Key{Dataset: "usep-8jbt"},
			want: "soda:usep-8jbt",
		},
		{
			name: "params sorted for determinism",
			key: Key{
				Dataset: "usep-8jbt",
				Query: url.Values{
					"$offset": []string{"0"},
					"$limit":  []string{"50000"},
				},
			},
			want: "soda:usep-8jbt:$limit=50000:$offset=0",
		},
		{
			name: "full page query",
			key: Key{
				Dataset: "usep-8jbt",
				Query: url.Values{
					"$where":  []string{"sale_date >= '2020-01-01' AND sale_date <= '2020-01-31'"},
					"$order":  []string{"sale_date DESC"},
					"$limit":  []string{"50000"},
					"$offset": []string{"50000"},
				},
			},
			want: "soda:usep-8jbt:$limit=50000:$offset=50000:$order=sale_date DESC:$where=sale_date >= '2020-01-01' AND sale_date <= '2020-01-31'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKey_StringDeterministic(t *testing.T) {
	key := Key{
		Dataset: "usep-8jbt",
		Query: url.Values{
			"$limit":  []string{"100"},
			"$offset": []string{"200"},
			"$order":  []string{"sale_date DESC"},
		},
	}

	first := key.String()
	for i := 0; i < 50; i++ {
		if got := key.String(); got != first {
			t.Fatalf("String() not deterministic: %q vs %q", got, first)
		}
	}
}
