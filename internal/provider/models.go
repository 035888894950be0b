package provider

import (
	"github.com/tidwall/gjson"
)

// ParseModelList extracts model ids from a model-list response. Every
// supported vendor returns {"data": [{"id": ...}, ...]}.
func ParseModelList(body []byte) ([]string, error) {
	data := gjson.GetBytes(body, "data")
	if !data.IsArray() {
		return nil, &MalformedReplyError{Vendor: "model list", Path: "data"}
	}

	var ids []string
	for _, entry := range data.Array() {
		if id := entry.Get("id"); id.Type == gjson.String {
			ids = append(ids, id.String())
		}
	}
	return ids, nil
}
