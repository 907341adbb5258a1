package suites

import (
	"encoding/json"
	"strings"

	"harness/internal/check"
	"harness/internal/suite"
)

func registerJSON(reg *suite.Registry) {
	_ = reg.Register("json/array", jsonArray)
	_ = reg.Register("json/nested", jsonNested)
	_ = reg.Register("json/invalid", jsonInvalid)
}

func jsonArray(r *check.Recorder) {
	out, err := json.Marshal([]int{1, 2, 3})
	r.AssertNoError(err, "marshal array")
	r.AssertEqual(string(out), "[1,2,3]", "array encoding")

	var empty []string
	out, err = json.Marshal(empty)
	r.AssertNoError(err, "marshal nil slice")
	r.AssertEqual(string(out), "null", "nil slice encodes as null")
}

func jsonNested(r *check.Recorder) {
	const doc = `{"name":"harness","cases":{"total":3,"tags":["a","b"]}}`
	var v struct {
		Name  string `json:"name"`
		Cases struct {
			Total int      `json:"total"`
			Tags  []string `json:"tags"`
		} `json:"cases"`
	}
	r.AssertNoError(json.Unmarshal([]byte(doc), &v), "unmarshal nested")
	r.AssertEqual(v.Name, "harness", "top-level field")
	r.AssertEqual(v.Cases.Total, 3, "nested field")
	r.AssertEqual(v.Cases.Tags, []string{"a", "b"}, "nested array")

	out, err := json.MarshalIndent(v, "", "  ")
	r.AssertNoError(err, "marshal indent")
	r.AssertTrue(strings.Count(string(out), "\n") > 3, "indented output is multi-line")
}

func jsonInvalid(r *check.Recorder) {
	for _, doc := range []string{`{`, `[1,2`, `{"a":}`, `nul`} {
		var v any
		r.AssertError(json.Unmarshal([]byte(doc), &v), "invalid document rejected")
	}
	r.AssertFalse(json.Valid([]byte(`{"a":1,}`)), "trailing comma is invalid")
}
