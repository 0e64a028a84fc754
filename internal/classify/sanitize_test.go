package classify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeDefault(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Tom &amp; Jerry":                     "Tom & Jerry",
		"1 &lt; 2 &gt; 0":                     "1 < 2 > 0",
		"&quot;quoted&quot; &#39;single&#39;": `"quoted" 'single'`,
		"“curly” ‘quotes’":                    `"curly" 'quotes'`,
		"dash&mdash;and&ndash;dash":           "dash-and-dash",
		"wait for it&hellip;":                 "wait for it...",
		// &amp; runs first, so a double-escaped entity collapses in one pass.
		"&amp;gt;": ">",
	}
	for in, want := range cases {
		require.Equal(t, want, Sanitize(in, ProfileDefault), in)
	}
}

func TestSanitizeStrict(t *testing.T) {
	t.Parallel()

	in := "Someone’s long &amp; boring title with a bunch of &quot;bad&quot; characters.oh boy&hellip; `ok`"
	want := `Someone's long and boring title with a bunch of "bad" characters. oh boy... 'ok'`
	require.Equal(t, want, Sanitize(in, ProfileStrict))
}

func TestSanitizeStrictKeepsDottedNames(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Learning Node.js at 3.5 years old":  "Learning Node.js at 3.5 years old",
		"Found on example.com today.Then ran": "Found on example.com today. Then ran",
		"Made in the U.S.A by hand":           "Made in the U.S.A by hand",
		"Pets, e.g.dogs":                      "Pets, e.g.dogs",
		"see www.reddit.com/r/aww":            "see www.reddit.com/r/aww",
		"It ended.And then":                   "It ended. And then",
	}
	for in, want := range cases {
		require.Equal(t, want, Sanitize(in, ProfileStrict), in)
	}
}

func TestSanitizeIdempotentOnSanitizedText(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Tom &amp; Jerry &lt;3 “friends” &hellip;",
		"It&#39;s a dog&mdash;probably",
		"plain title",
		"end.Next sentence &amp; more",
	}
	for _, profile := range []Profile{ProfileDefault, ProfileStrict} {
		for _, in := range inputs {
			once := Sanitize(in, profile)
			require.Equal(t, once, Sanitize(once, profile), "%s: %q", profile, in)
		}
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	r := Resolver{AggregatorHosts: []string{"imgur.com", "host"}, DirectHost: "i.imgur.com"}

	require.Equal(t, "https://i.imgur.com/XYZ123.jpg", r.Resolve("https://host/a/b/XYZ123"))
	require.Equal(t, "https://i.imgur.com/asdf.jpg", r.Resolve("https://imgur.com/asdf"))
	require.Equal(t, "https://imgur.com/qwerty.jpg", r.Resolve("https://imgur.com/qwerty.jpg"))
	require.Equal(t, "https://i.redd.it/x.png", r.Resolve("https://i.redd.it/x.png"))

	// the extension check reads the path, not the raw string
	require.Equal(t, "https://imgur.com/abc.jpg?1", r.Resolve("https://imgur.com/abc.jpg?1"))
	require.Equal(t, "https://i.imgur.com/abc.png", r.Resolve("https://imgur.com/abc.png"))
	require.Equal(t, "https://i.imgur.com/abc.jpeg", r.Resolve("https://imgur.com/abc.jpeg"))
	require.Equal(t, "https://i.imgur.com/abc.PNG", r.Resolve("https://imgur.com/abc.PNG?x=1"))
	require.True(t, r.IsAggregator("https://IMGUR.com/gallery/x"))
	require.False(t, r.IsAggregator("https://i.imgur.com/x.jpg"))
}

func TestShortLink(t *testing.T) {
	t.Parallel()

	link, err := ShortLink("https://redd.it", "/r/a/b/8pr4gv/some_post_title/")
	require.NoError(t, err)
	require.Equal(t, "https://redd.it/8pr4gv", link)

	link, err = ShortLink("https://redd.it/", "/r/aww/comments/abc/title/")
	require.NoError(t, err)
	require.Equal(t, "https://redd.it/abc", link)

	_, err = ShortLink("https://redd.it", "/r/aww/")
	require.Error(t, err)
}
