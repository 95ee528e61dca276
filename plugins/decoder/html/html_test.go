package html

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextVisibleOnly(t *testing.T) {
	doc := `<!DOCTYPE html>
<html><head><title>ignored</title><style>p{}</style></head>
<body>
  <h1>Port   scanning</h1>
  <p>Use
     <code>nmap -sS
     192.168.1.0/24</code> to find hosts.</p>
  <script>var nmap = "-sS 1.2.3.4";</script>
  <!-- nmap -A 9.9.9.9 -->
  <pre>nmap -p 80 10.0.0.1
nmap -A 10.0.0.2</pre>
  <table><tr><td>a</td><td>b</td></tr></table>
</body></html>`
	got, err := Text(strings.NewReader(doc))
	require.NoError(t, err)
	want := "Port scanning\n\nUse nmap -sS 192.168.1.0/24 to find hosts.\n\nnmap -p 80 10.0.0.1\nnmap -A 10.0.0.2\n\na b"
	assert.Equal(t, want, got)
	assert.NotContains(t, got, "ignored")
	assert.NotContains(t, got, "9.9.9.9")
}

func TestDecode(t *testing.T) {
	got, err := New().Decode(context.Background(), "x.html", strings.NewReader("<p>nmap&nbsp;-A <b>host</b></p>"))
	require.NoError(t, err)
	assert.Equal(t, "nmap -A host", got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New().Decode(ctx, "x.html", strings.NewReader(""))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollapse(t *testing.T) {
	assert.Equal(t, "", collapse(""))
	assert.Equal(t, " ", collapse(" \n "))
	assert.Equal(t, " a b ", collapse("\n a \n\t b "))
	assert.Equal(t, "a", collapse("a"))
}
