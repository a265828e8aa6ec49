package seleniumtest

import (
	"fmt"
	"net/http"
)

// Handler serves a small application for tests that drive a real browser.
//
//	/        "Hello World" page with a login form
//	/slow    title changes after one second
//	/reveal  a button enabled and a banner shown after one second
//	/search  echoes the q form value
func Handler() http.Handler {
	mux := http.NewServeMux()
	for path, page := range map[string]string{
		"/":       homePage,
		"/slow":   titleChangePage,
		"/reveal": revealPage,
	} {
		page := page
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != path {
				http.NotFound(w, r)
				return
			}
			fmt.Fprint(w, page)
		})
	}
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, searchPage, r.FormValue("q"))
	})
	return mux
}

// SearchContents is always present in the /search result.
const SearchContents = "The Go Programming Language"

const homePage = `
<html>
<head>
	<title>Hello World</title>
</head>
<body>
	<h1 id="greeting">Hello World</h1>
	<form action="/search">
		<input name="q" autofocus />
		<input type="submit" id="submit" />
	</form>
	<div id="messages"><span class="info">Welcome</span></div>
	Link to the <a href="/slow">slow page</a>.
</body>
</html>
`

const titleChangePage = `
<html>
<head>
	<title>Waiting</title>
</head>
<body>
	This page will change a title after 1 second.

	<script>
		setTimeout(function() { document.title = 'Title changed.' }, 1000);
	</script>
</body>
</html>
`

const revealPage = `
<html>
<head>
	<title>Reveal</title>
</head>
<body>
	<button id="go" disabled>Go</button>
	<div id="banner" style="display: none">Ready</div>
	<div id="spinner">Loading</div>

	<script>
		setTimeout(function() {
			document.getElementById('go').disabled = false;
			document.getElementById('banner').style.display = 'block';
			document.getElementById('spinner').remove();
		}, 1000);
	</script>
</body>
</html>
`

const searchPage = `
<html>
<head>
	<title>Search</title>
</head>
<body>
	You searched for "%s". I'll pretend I've found:
	<p id="result">` + SearchContents + `</p>
</body>
</html>
`
