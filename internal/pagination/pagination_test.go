package pagination

import "testing"

func TestNewPage(t *testing.T) {
	cases := []struct {
		name   string
		params Params
		total  int64
		want   Page
	}{
		{
			name:   "first page",
			params: Params{Offset: 0, Limit: 10},
			total:  25,
			want:   Page{Total: 25, Page: 1, Limit: 10, Offset: 0, HasNext: true, HasPrev: false},
		},
		{
			name:   "middle page",
			params: Params{Offset: 10, Limit: 10},
			total:  25,
			want:   Page{Total: 25, Page: 2, Limit: 10, Offset: 10, HasNext: true, HasPrev: true},
		},
		{
			name:   "last page",
			params: Params{Offset: 20, Limit: 10},
			total:  25,
			want:   Page{Total: 25, Page: 3, Limit: 10, Offset: 20, HasNext: false, HasPrev: true},
		},
		{
			name:   "exact boundary",
			params: Params{Offset: 10, Limit: 10},
			total:  20,
			want:   Page{Total: 20, Page: 2, Limit: 10, Offset: 10, HasNext: false, HasPrev: true},
		},
		{
			name:   "defaults",
			params: Params{},
			total:  0,
			want:   Page{Total: 0, Page: 1, Limit: DefaultLimit, Offset: 0},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NewPage(tc.params, tc.total); got != tc.want {
				t.Fatalf("NewPage() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	query := map[string]string{"page": "3", "page_size": "15"}
	p := Parse(func(k string) string { return query[k] })
	if p.Limit != 15 || p.Offset != 30 {
		t.Fatalf("unexpected params %+v", p)
	}

	query = map[string]string{"limit": "1000", "offset": "-5"}
	p = Parse(func(k string) string { return query[k] })
	if p.Limit != MaxLimit || p.Offset != 0 {
		t.Fatalf("expected clamped params, got %+v", p)
	}
}
