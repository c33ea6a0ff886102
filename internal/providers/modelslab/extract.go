package modelslab

import "encoding/json"

// ModelURL extracts the model location from a success payload. proxy_links
// point at a stable mirror while output links may expire, so the first proxy
// link always wins over the first output entry. Empty string means absent.
func ModelURL(r *Response) string {
	if r == nil {
		return ""
	}
	if link := firstLink(r.ProxyLinks); link != "" {
		return link
	}
	return firstLink(r.Output)
}

// UploadedURL returns the durable image URL from a base64_to_url response.
func UploadedURL(r *Response) string {
	if r == nil {
		return ""
	}
	return firstLink(r.Output)
}

func firstLink(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var links []any
	if err := json.Unmarshal(raw, &links); err != nil || len(links) == 0 {
		return ""
	}
	link, _ := links[0].(string)
	return link
}
