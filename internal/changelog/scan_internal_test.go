package changelog

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

type fakeRows struct {
	records []fakeRecord
	idx     int
}

type fakeRecord struct {
	id         int32
	changeType string
	objectName string
	detail     *string
	forced     bool
	executedAt time.Time
}

func (f *fakeRows) Next() bool {
	if f.idx >= len(f.records) {
		return false
	}
	f.idx++
	return true
}

func (f *fakeRows) Err() error { return nil }

func (f *fakeRows) Scan(dest ...any) error {
	r := f.records[f.idx-1]
	*dest[0].(*int32) = r.id
	*dest[1].(*string) = r.changeType
	*dest[2].(*string) = r.objectName
	*dest[3].(**string) = r.detail
	*dest[4].(*bool) = r.forced
	*dest[5].(*time.Time) = r.executedAt
	return nil
}

func TestScanRecordsParsesJSONDetail(t *testing.T) {
	c := qt.New(t)

	detail := `{"checksum":"abc123"}`
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := &fakeRows{records: []fakeRecord{
		{id: 1, changeType: "migration_applied", objectName: "001_create_users.pssql", detail: &detail, forced: false, executedAt: now},
		{id: 2, changeType: "function_skipped", objectName: "get_user", detail: nil, forced: false, executedAt: now},
	}}

	records, err := scanRecords(rows)
	c.Assert(err, qt.IsNil)
	c.Assert(records, qt.HasLen, 2)
	c.Assert(records[0].ChangeDetail["checksum"], qt.Equals, "abc123")
	c.Assert(records[1].ChangeDetail, qt.IsNil)
}
