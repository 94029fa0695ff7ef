package sheets

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"
)

const testSpreadsheet = "sheet-1"

// fakeSheets is a minimal in-memory Sheets API: enough of values get/update/
// append/clear and batchUpdate for the store.
type fakeSheets struct {
	mu     sync.Mutex
	ids    map[string]int64
	data   map[string][][]string
	nextID int64
	calls  []string

	// failWrites makes every values update answer 503.
	failWrites bool
}

func newFakeSheets(titles ...string) *fakeSheets {
	f := &fakeSheets{ids: map[string]int64{}, data: map[string][][]string{}}
	for _, t := range titles {
		f.add(t)
	}
	return f
}

func (f *fakeSheets) add(title string) int64 {
	f.nextID++
	f.ids[title] = f.nextID
	f.data[title] = nil
	return f.nextID
}

func (f *fakeSheets) rows(title string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[title]
}

func (f *fakeSheets) set(title string, rows ...[]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ids[title]; !ok {
		f.add(title)
	}
	f.data[title] = rows
}

var a1Re = regexp.MustCompile(`^([^!]+)!([A-Z]+)(\d*)(?::([A-Z]+)(\d*))?$`)

// parseA1 returns the sheet, the zero-based first row and column, and the
// last column index, -1 meaning unbounded. Columns past Z are not supported.
func parseA1(a1 string) (sheet string, start, firstCol, lastCol int, ok bool) {
	m := a1Re.FindStringSubmatch(a1)
	if m == nil {
		return "", 0, 0, 0, false
	}
	firstCol = int(m[2][0] - 'A')
	if m[3] != "" {
		n, _ := strconv.Atoi(m[3])
		start = n - 1
	}
	lastCol = -1
	if m[4] != "" {
		lastCol = int(m[4][0] - 'A')
	}
	return m[1], start, firstCol, lastCol, true
}

func cell(v interface{}) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strings.ToUpper(strconv.FormatBool(x))
	case nil:
		return ""
	default:
		return x.(string)
	}
}

func (f *fakeSheets) handler(t *testing.T) http.Handler {
	prefix := "/v4/spreadsheets/" + testSpreadsheet
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		path := strings.TrimPrefix(r.URL.Path, prefix)
		f.calls = append(f.calls, r.Method+" "+path)

		switch {
		case path == "" && r.Method == http.MethodGet:
			ss := &sheetsv4.Spreadsheet{}
			for title, id := range f.ids {
				ss.Sheets = append(ss.Sheets, &sheetsv4.Sheet{Properties: &sheetsv4.SheetProperties{SheetId: id, Title: title}})
			}
			writeJSON(w, ss)

		case path == ":batchUpdate":
			var req sheetsv4.BatchUpdateSpreadsheetRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			resp := &sheetsv4.BatchUpdateSpreadsheetResponse{}
			for _, q := range req.Requests {
				reply := &sheetsv4.Response{}
				if q.AddSheet != nil {
					id := f.add(q.AddSheet.Properties.Title)
					reply.AddSheet = &sheetsv4.AddSheetResponse{Properties: &sheetsv4.SheetProperties{SheetId: id, Title: q.AddSheet.Properties.Title}}
				}
				if d := q.DeleteDimension; d != nil {
					for title, id := range f.ids {
						if id == d.Range.SheetId {
							rows := f.data[title]
							f.data[title] = append(rows[:d.Range.StartIndex:d.Range.StartIndex], rows[d.Range.EndIndex:]...)
						}
					}
				}
				resp.Replies = append(resp.Replies, reply)
			}
			writeJSON(w, resp)

		case strings.HasPrefix(path, "/values/"):
			a1 := strings.TrimPrefix(path, "/values/")
			op := ""
			for _, suffix := range []string{":clear", ":append"} {
				if strings.HasSuffix(a1, suffix) {
					a1, op = strings.TrimSuffix(a1, suffix), suffix
				}
			}
			sheet, start, firstCol, lastCol, ok := parseA1(a1)
			if _, exists := f.ids[sheet]; !ok || !exists {
				http.Error(w, `{"error":{"code":400,"message":"Unable to parse range"}}`, http.StatusBadRequest)
				return
			}
			switch {
			case op == ":clear":
				if start < len(f.data[sheet]) {
					f.data[sheet] = f.data[sheet][:start]
				}
				writeJSON(w, &sheetsv4.ClearValuesResponse{})
			case r.Method == http.MethodPut && f.failWrites:
				http.Error(w, `{"error":{"code":503,"message":"backend unavailable"}}`, http.StatusServiceUnavailable)
			case op == ":append" || r.Method == http.MethodPut:
				var vr sheetsv4.ValueRange
				if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				at := start
				if op == ":append" {
					at = len(f.data[sheet])
				}
				for i, row := range vr.Values {
					cells := make([]string, firstCol+len(row))
					for j, v := range row {
						cells[firstCol+j] = cell(v)
					}
					for len(f.data[sheet]) <= at+i {
						f.data[sheet] = append(f.data[sheet], nil)
					}
					f.data[sheet][at+i] = cells
				}
				writeJSON(w, &sheetsv4.UpdateValuesResponse{})
			default:
				vr := &sheetsv4.ValueRange{Range: a1}
				rows := f.data[sheet]
				for i := start; i < len(rows); i++ {
					out := []interface{}{}
					for j, c := range rows[i] {
						if lastCol >= 0 && j > lastCol {
							break
						}
						if j >= firstCol {
							out = append(out, c)
						}
					}
					vr.Values = append(vr.Values, out)
				}
				writeJSON(w, vr)
			}

		default:
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	})
}

func (f *fakeSheets) setFailWrites(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWrites = v
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, f *fakeSheets) *Client {
	t.Helper()
	ts := httptest.NewServer(f.handler(t))
	t.Cleanup(ts.Close)
	c, err := NewWithOptions(t.Context(), testSpreadsheet, zaptest.NewLogger(t),
		option.WithEndpoint(ts.URL+"/"),
		option.WithHTTPClient(ts.Client()),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return c
}
