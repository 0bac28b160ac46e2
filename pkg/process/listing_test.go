package process

import (
	"io"
	"net/url"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/film-indexer/pkg/config"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func urlStrings(urls []*url.URL) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		out = append(out, u.String())
	}
	return out
}

func TestListingParser_ImdbLayout(t *testing.T) {
	page := `<html><body>
<div class="lister-item"><h3 class="lister-item-header"><span>1.</span><a href="/title/tt0111161/?ref_=adv_li_tt">The Shawshank Redemption</a></h3></div>
<div class="lister-item"><h3 class="lister-item-header"><span>2.</span><a href="/title/tt0068646/">The Godfather</a></h3></div>
<div class="desc"><a href="?groups=top_1000&amp;start=51" class="lister-page-next next-page">Next »</a></div>
</body></html>`
	lp := NewListingParser(config.SelectorConfig{}, testLogger())

	result, err := lp.Parse([]byte(page), mustURL(t, "http://www.imdb.com/search/title?groups=top_1000"))

	require.NoError(t, err)
	assert.Equal(t, []string{
		"http://www.imdb.com/title/tt0111161/?ref_=adv_li_tt",
		"http://www.imdb.com/title/tt0068646/",
	}, urlStrings(result.DetailURLs))
	require.NotNil(t, result.NextURL)
	assert.Equal(t, "http://www.imdb.com/search/title?groups=top_1000&start=51", result.NextURL.String())
	assert.Equal(t, 0, result.SkippedLinks)
}

func TestListingParser_ContainerSelector(t *testing.T) {
	page := `<div class="item"><a href="/d/1">One</a><a href="/d/2">Two</a></div>
<div class="item"><a>no href</a></div>`
	lp := NewListingParser(config.SelectorConfig{DetailLink: ".item"}, testLogger())

	result, err := lp.Parse([]byte(page), mustURL(t, "http://127.0.0.1:9000/list"))

	require.NoError(t, err)
	assert.Equal(t, []string{"http://127.0.0.1:9000/d/1", "http://127.0.0.1:9000/d/2"}, urlStrings(result.DetailURLs))
	assert.Nil(t, result.NextURL)
}

func TestListingParser_NextHrefOnDescendant(t *testing.T) {
	page := `<span class="lister-page-next"><a href="/list?page=3">Next</a></span>`
	lp := NewListingParser(config.SelectorConfig{}, testLogger())

	result, err := lp.Parse([]byte(page), mustURL(t, "http://example.com/list?page=2"))

	require.NoError(t, err)
	assert.Empty(t, result.DetailURLs)
	require.NotNil(t, result.NextURL)
	assert.Equal(t, "http://example.com/list?page=3", result.NextURL.String())
}

func TestListingParser_NextWithoutHrefEndsPagination(t *testing.T) {
	page := `<h3 class="lister-item-header"><a href="/title/tt1/">A</a></h3>
<span class="lister-page-next">Next »</span>`
	lp := NewListingParser(config.SelectorConfig{}, testLogger())

	result, err := lp.Parse([]byte(page), mustURL(t, "http://example.com/list"))

	require.NoError(t, err)
	assert.Len(t, result.DetailURLs, 1)
	assert.Nil(t, result.NextURL)
}

func TestListingParser_NoDetailLinksStillFollowsNext(t *testing.T) {
	page := `<p>No results on this page</p><a class="lister-page-next" href="/list?page=2">Next</a>`
	lp := NewListingParser(config.SelectorConfig{}, testLogger())

	result, err := lp.Parse([]byte(page), mustURL(t, "http://example.com/list"))

	require.NoError(t, err)
	assert.Empty(t, result.DetailURLs)
	require.NotNil(t, result.NextURL)
	assert.Equal(t, "http://example.com/list?page=2", result.NextURL.String())
}

func TestListingParser_SkipsUnusableLinks(t *testing.T) {
	page := `<h3 class="lister-item-header"><a href="javascript:void(0)">JS</a></h3>
<h3 class="lister-item-header"><a href="mailto:x@example.com">Mail</a></h3>
<h3 class="lister-item-header"><a href="  ">Blank</a></h3>
<h3 class="lister-item-header"><a href="/title/tt9/">Good</a></h3>
<a class="lister-page-next" href="mailto:nope@example.com">Next</a>`
	lp := NewListingParser(config.SelectorConfig{}, testLogger())

	result, err := lp.Parse([]byte(page), mustURL(t, "http://example.com/list"))

	require.NoError(t, err)
	assert.Equal(t, []string{"http://example.com/title/tt9/"}, urlStrings(result.DetailURLs))
	assert.Equal(t, 3, result.SkippedLinks)
	assert.Nil(t, result.NextURL)
}

func TestListingParser_DuplicatesKeptInOrder(t *testing.T) {
	page := `<h3 class="lister-item-header"><a href="/title/tt2/">B</a></h3>
<h3 class="lister-item-header"><a href="/title/tt1/">A</a></h3>
<h3 class="lister-item-header"><a href="/title/tt2/">B again</a></h3>`
	lp := NewListingParser(config.SelectorConfig{}, testLogger())

	result, err := lp.Parse([]byte(page), mustURL(t, "http://example.com/list"))

	require.NoError(t, err)
	assert.Equal(t, []string{
		"http://example.com/title/tt2/",
		"http://example.com/title/tt1/",
		"http://example.com/title/tt2/",
	}, urlStrings(result.DetailURLs))
}
