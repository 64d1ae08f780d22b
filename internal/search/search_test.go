package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const fixturePage = `<!DOCTYPE html>
<html><head><title>openai at DuckDuckGo</title><style>.x{}</style></head>
<body>
<div id="links" class="results">
  <div class="result results_links results_links_deep result--ad">
    <a class="result__a" href="https://ads.example/">Sponsored</a>
    <a class="result__snippet">Buy now</a>
  </div>
  <div class="result results_links results_links_deep web-result">
    <h2 class="result__title">
      <a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fopenai.com%2F&amp;rut=abc">OpenAI</a>
    </h2>
    <a class="result__snippet" href="#">We believe our research will eventually
      lead to <b>artificial general intelligence</b>.</a>
  </div>
  <div class="result results_links web-result">
    <a class="result__a" href="https://en.wikipedia.org/wiki/OpenAI">OpenAI - Wikipedia</a>
    <a class="result__snippet">OpenAI is an American AI research organization.</a>
  </div>
  <div class="result results_links web-result">
    <a class="result__a" href="https://github.com/openai">OpenAI · GitHub</a>
    <a class="result__snippet">OpenAI has 200 repositories.</a>
  </div>
  <div class="result results_links web-result">
    <a class="result__a" href="https://platform.openai.com/">Platform</a>
  </div>
  <div class="result result--no-result"><div class="no-results">nothing</div></div>
</div>
</body></html>`

func TestParseResults(t *testing.T) {
	results, err := ParseResults([]byte(fixturePage))
	require.NoError(t, err)
	require.Len(t, results, 4)

	require.Equal(t, Result{
		Title: "OpenAI",
		Href:  "https://openai.com/",
		Body:  "We believe our research will eventually lead to artificial general intelligence.",
	}, results[0])
	require.Equal(t, "https://en.wikipedia.org/wiki/OpenAI", results[1].Href)
	require.Equal(t, "", results[3].Body)
}

func TestParseResultsEmptyPage(t *testing.T) {
	results, err := ParseResults([]byte(`<html><body><div class="no-results">No results.</div></body></html>`))
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestDuckDuckGoSearch(t *testing.T) {
	var gotMethod, gotQuery, gotRegion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		_ = r.ParseForm()
		gotQuery = r.PostForm.Get("q")
		gotRegion = r.PostForm.Get("kl")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(fixturePage))
	}))
	defer srv.Close()

	ddg := NewDuckDuckGo(srv.URL, "cn-zh")
	results, err := ddg.Search(context.Background(), "  openai ", 3)
	require.NoError(t, err)
	require.Equal(t, "POST", gotMethod)
	require.Equal(t, "openai", gotQuery)
	require.Equal(t, "cn-zh", gotRegion)
	require.Len(t, results, 3)
	require.Equal(t, "OpenAI · GitHub", results[2].Title)
}

func TestDuckDuckGoSearchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	ddg := NewDuckDuckGo(srv.URL, "")
	_, err := ddg.Search(context.Background(), "openai", 3)
	require.ErrorContains(t, err, "202")

	_, err = ddg.Search(context.Background(), "   ", 3)
	require.ErrorContains(t, err, "empty query")
}

func TestFormat(t *testing.T) {
	out := Format([]Result{
		{Title: "A", Href: "https://a.example", Body: "first"},
		{Title: "B", Href: "https://b.example", Body: "second"},
	})
	require.Equal(t, "Title: A\nLink: https://a.example\nBody: first\nTitle: B\nLink: https://b.example\nBody: second", out)
	require.Equal(t, "", Format(nil))
}

func TestHTMLToText(t *testing.T) {
	text := HTMLToText([]byte(`<html><head><title>t</title><script>var x=1;</script></head>
<body><h1>Hello</h1>
<p>world   and
 more</p><noscript>enable js</noscript></body></html>`))
	require.Equal(t, "Hello world and more", text)
	require.False(t, strings.Contains(text, "var x"))
}
