package sheet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	doc := "\nname,level,topic\r\nAda,B1,space\r\nLin,A2\nTom,C1,sea,extra\n\n"

	rows := Parse(doc)
	require.Len(t, rows, 3)
	require.Equal(t, Row{{"name", "Ada"}, {"level", "B1"}, {"topic", "space"}}, rows[0])

	_, ok := rows[1].Get("topic")
	require.False(t, ok)
	require.Equal(t, Row{{"name", "Tom"}, {"level", "C1"}, {"topic", "sea"}}, rows[2])
}

func TestParseQuotedFieldsAreSplit(t *testing.T) {
	rows := Parse("a,b\n\"x,y\",z")
	require.Equal(t, Row{{"a", `"x`}, {"b", `y"`}}, rows[0])
}

func TestParseEmpty(t *testing.T) {
	require.Empty(t, Parse("  \n "))
	require.Empty(t, Parse("only,headers"))
}

func TestRowJSONKeepsColumnOrder(t *testing.T) {
	row := Row{{"zeta", "1"}, {"alpha", "2"}, {"mid", "3"}}

	data, err := sonic.Marshal([]Row{row})
	require.NoError(t, err)
	require.JSONEq(t, `[{"zeta":"1","alpha":"2","mid":"3"}]`, string(data))
	require.Equal(t, `[{"zeta":"1","alpha":"2","mid":"3"}]`, string(data))

	var decoded []Row
	require.NoError(t, sonic.Unmarshal(data, &decoded))
	require.Equal(t, []Row{row}, decoded)
}

func TestRowUnmarshalRejectsNonObject(t *testing.T) {
	var r Row
	require.Error(t, r.UnmarshalJSON([]byte(`["a"]`)))
}

func TestFormat(t *testing.T) {
	rows := Parse("name,level\nAda,B1\nLin")
	require.Equal(t, "name\tlevel\nAda\tB1\nLin\t\n", Format(rows))
	require.Equal(t, "", Format(nil))
}

func TestFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "q,a\nWhy?,Because\n")
	}))
	defer srv.Close()

	f := NewFetcher(slog.New(slog.NewTextHandler(io.Discard, nil)), srv.URL, nil)
	rows, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, []Row{{{"q", "Why?"}, {"a", "Because"}}}, rows)
}

func TestFetcherStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(slog.New(slog.NewTextHandler(io.Discard, nil)), srv.URL, nil)
	_, err := f.Fetch(context.Background())

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.Equal(t, "Fetch error: 404", err.Error())
}
