package analysis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFencedJSON(t *testing.T) {
	text := "Here is the report.\n```json\n{\"audit_status\": \"PASS\"}\n```\nThanks."
	assert.Equal(t, `{"audit_status": "PASS"}`, FencedJSON(text))

	assert.Equal(t, "", FencedJSON("no fence here {\"a\":1}"))
	assert.Equal(t, "", FencedJSON("```\n{\"a\":1}\n```")) // untagged fence does not count
}

func TestFirstJSONObject(t *testing.T) {
	t.Run("plain object", func(t *testing.T) {
		assert.Equal(t, `{"a":1}`, FirstJSONObject(`prefix {"a":1} suffix`))
	})

	t.Run("nested objects", func(t *testing.T) {
		in := `text {"a":{"b":[1,2,{"c":3}]},"d":"x"} more`
		assert.Equal(t, `{"a":{"b":[1,2,{"c":3}]},"d":"x"}`, FirstJSONObject(in))
	})

	t.Run("braces inside strings", func(t *testing.T) {
		in := `{"desc":"curly } inside","n":1}`
		assert.Equal(t, in, FirstJSONObject(in))
	})

	t.Run("invalid first candidate, valid later", func(t *testing.T) {
		in := `{not json} then {"ok":true}`
		assert.Equal(t, `{"ok":true}`, FirstJSONObject(in))
	})

	t.Run("no object at all", func(t *testing.T) {
		assert.Equal(t, "", FirstJSONObject("just prose, nothing else"))
	})
}

func TestParseStructured(t *testing.T) {
	assert.Nil(t, ParseStructured("the model refused to answer"))

	got := ParseStructured(`Some prose. {"invoice_number":"INV-1"} done.`)
	require.NotNil(t, got)
	var m map[string]string
	require.NoError(t, json.Unmarshal(got, &m))
	assert.Equal(t, "INV-1", m["invoice_number"])
}

func TestParseAuditReportFencedIdempotence(t *testing.T) {
	payload := `{
  "audit_status": "WARNING",
  "risk_level": "MEDIUM",
  "documents_checked": [{"document_type": "commercial_invoice", "file_name": "inv.pdf", "status": "ok", "issues": []}],
  "missing_documents": ["phytosanitary_certificate"],
  "cross_check_results": [{"field": "Gross weight", "status": "WITHIN_TOLERANCE", "values": {"commercial_invoice": "1000", "packing_list": "1010"}, "details": "1.0% delta"}],
  "errors": [],
  "warnings": ["phyto missing"],
  "summary": "mostly fine",
  "recommended_actions": ["upload phytosanitary certificate"]
}`
	text := "Audit complete, see below.\n```json\n" + payload + "\n```\nLet me know."

	parsed := ParseAuditReport(text)
	require.NotNil(t, parsed.Report)
	assert.False(t, parsed.Degraded)

	// parsing the reply must equal parsing the block directly
	var direct AuditReport
	require.NoError(t, json.Unmarshal([]byte(payload), &direct))
	assert.Equal(t, &direct, parsed.Report)
	assert.JSONEq(t, payload, string(parsed.Raw))
}

func TestParseAuditReportBraceFallbackIsDegraded(t *testing.T) {
	text := `No fence, sorry. {"audit_status":"PASS","risk_level":"LOW","summary":"ok"}`
	parsed := ParseAuditReport(text)
	require.NotNil(t, parsed.Report)
	assert.True(t, parsed.Degraded)
	assert.Equal(t, AuditStatusPass, parsed.Report.AuditStatus)
}

func TestParseAuditReportUnknownStatusIsDegraded(t *testing.T) {
	text := "```json\n{\"audit_status\":\"MAYBE\",\"risk_level\":\"LOW\"}\n```"
	parsed := ParseAuditReport(text)
	require.NotNil(t, parsed.Report)
	assert.True(t, parsed.Degraded)
}

func TestParseAuditReportTotalFailure(t *testing.T) {
	parsed := ParseAuditReport("I could not produce a report this time.")
	assert.Nil(t, parsed.Report)
	assert.Nil(t, parsed.Raw)
	assert.True(t, parsed.Degraded)
}

func TestParseFencedOrFirst(t *testing.T) {
	fenced := "```json\n{\"a\":1}\n```\nand also {\"b\":2}"
	assert.JSONEq(t, `{"a":1}`, string(ParseFencedOrFirst(fenced)))

	bare := `prose {"b":2} prose`
	assert.JSONEq(t, `{"b":2}`, string(ParseFencedOrFirst(bare)))

	assert.Nil(t, ParseFencedOrFirst("nothing structured"))
}
