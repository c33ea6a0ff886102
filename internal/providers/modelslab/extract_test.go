package modelslab

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func decodeResponse(t *testing.T, body string) *Response {
	t.Helper()
	var r Response
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return &r
}

func TestModelURL(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "proxy preferred over output", body: `{"proxy_links":["https://mirror/a.glb"],"output":["https://raw/a.glb"]}`, want: "https://mirror/a.glb"},
		{name: "output fallback when proxy absent", body: `{"output":["https://raw/a.glb","https://raw/b.glb"]}`, want: "https://raw/a.glb"},
		{name: "output fallback when proxy empty", body: `{"proxy_links":[],"output":["https://raw/a.glb"]}`, want: "https://raw/a.glb"},
		{name: "output fallback when proxy null", body: `{"proxy_links":null,"output":["https://raw/a.glb"]}`, want: "https://raw/a.glb"},
		{name: "empty first proxy link falls through", body: `{"proxy_links":[""],"output":["https://raw/a.glb"]}`, want: "https://raw/a.glb"},
		{name: "both absent", body: `{"status":"success"}`, want: ""},
		{name: "both empty", body: `{"proxy_links":[],"output":[]}`, want: ""},
		{name: "non-string entries ignored", body: `{"proxy_links":[42],"output":[{"url":"x"}]}`, want: ""},
		{name: "non-list field ignored", body: `{"proxy_links":"https://mirror/a.glb","output":["https://raw/a.glb"]}`, want: "https://raw/a.glb"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ModelURL(decodeResponse(t, tc.body)))
		})
	}
	assert.Empty(t, ModelURL(nil))
	assert.Empty(t, UploadedURL(nil))
}

func TestModelURLPrefersProxyLinksProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		link := rapid.StringMatching(`https://[a-z]{1,12}\.test/[a-z0-9]{1,16}\.glb`)
		proxy := rapid.SliceOfN(link, 0, 4).Draw(rt, "proxy")
		output := rapid.SliceOfN(link, 0, 4).Draw(rt, "output")

		payload := map[string]any{"status": "success"}
		if len(proxy) > 0 || rapid.Bool().Draw(rt, "emitEmptyProxy") {
			payload["proxy_links"] = proxy
		}
		if len(output) > 0 || rapid.Bool().Draw(rt, "emitEmptyOutput") {
			payload["output"] = output
		}
		body, err := json.Marshal(payload)
		if err != nil {
			rt.Fatalf("marshal: %v", err)
		}
		var resp Response
		if err := json.Unmarshal(body, &resp); err != nil {
			rt.Fatalf("unmarshal: %v", err)
		}

		want := ""
		switch {
		case len(proxy) > 0:
			want = proxy[0]
		case len(output) > 0:
			want = output[0]
		}
		if got := ModelURL(&resp); got != want {
			rt.Fatalf("ModelURL = %q, want %q (proxy=%v output=%v)", got, want, proxy, output)
		}
	})
}
