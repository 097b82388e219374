// Package weave renders a slice of a flat struct as a table or a JSON array,
// given the column order to render. It is the rendering half of fsck's
// report output (§4.5): BuildReport produces []ReportRow, weave turns that
// into the monitor-text or JSON shape an operator actually reads.
package weave

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/Jeffail/gabs/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Given an array of an arbitrary struct and the list of top-level field
// names to include, outputs a table containing the data in the array of
// the struct.
//
// Can optionally be given a table style func. Uses DefaultTblStyle() if not given.
func ToTable[Any any](st []Any, columns []string, styleFunc ...func() *table.Table) string {
	if columns == nil || st == nil || len(st) < 1 || len(columns) < 1 { // superfluous request
		return ""
	}

	columnMap := buildColumnMap(st[0], columns)

	var rows [][]string = make([][]string, len(st))

	for i := range st { // operate on each struct
		rows[i] = make([]string, len(columns))
		// deconstruct the struct
		structVals := reflect.ValueOf(st[i])
		// search for each column
		for k := range columns {
			findex, ok := columnMap[columns[k]]
			if ok {
				data := structVals.FieldByIndex(findex)
				if data.Kind() == reflect.Pointer {
					data = data.Elem()
				}
				// save the data into our row
				rows[i][k] = fmt.Sprintf("%v", data)
			}
		}
	}

	var tbl *table.Table
	// if user supplied a tableStyle, use it. Otherwise, use the default
	if len(styleFunc) > 0 {
		tbl = styleFunc[0]()
	} else {
		tbl = DefaultTblStyle()
	}

	tbl.Headers(columns...)
	tbl.Rows(rows...)

	return tbl.Render()
}

// Style function used internally by ToTable if a styleFunc is not provided.
// Use as an example for supplying your own.
func DefaultTblStyle() *table.Table {
	return table.New().StyleFunc(func(row, col int) lipgloss.Style {
		return lipgloss.NewStyle().Width(10) // set row and column width
	})
}

// transmogrification struct for outputting complex numbers that encoding/json
// otherwise doesn't support
type gComplex[t float32 | float64] struct {
	Real      t
	Imaginary t
}

// Given an array of an arbitrary struct and the list of top-level field
// names to include, outputs a JSON array containing the data in the array
// of the struct. Output is sorted alphabetically.
func ToJSON[Any any](st []Any, columns []string) (string, error) {
	if columns == nil || st == nil || len(st) < 1 || len(columns) < 1 { // superfluous request
		return "[]", nil
	}

	columnMap := buildColumnMap(st[0], columns)

	var bldr strings.Builder
	bldr.WriteRune('[') // open JSON array
	for _, s := range st {
		g := gabs.New()
		structVO := reflect.ValueOf(s)
		for _, col := range columns {
			// get value associated to this column
			fIndex, ok := columnMap[col]
			if !ok {
				continue
			}
			data := structVO.FieldByIndex(fIndex)
			if data.Kind() == reflect.Pointer {
				data = data.Elem()
			}
			switch data.Type().Kind() {
			case reflect.Float32:
				v := data.Interface().(float32)
				g.SetP(v, col)
			case reflect.Float64:
				v := data.Interface().(float64)
				g.SetP(v, col)
			case reflect.Int:
				v := data.Interface().(int)
				g.SetP(v, col)
			case reflect.Int8:
				v := data.Interface().(int8)
				g.SetP(v, col)
			case reflect.Int16:
				v := data.Interface().(int16)
				g.SetP(v, col)
			case reflect.Int32:
				v := data.Interface().(int32)
				g.SetP(v, col)
			case reflect.Int64:
				v := data.Interface().(int64)
				g.SetP(v, col)
			case reflect.Complex64:
				v := data.Interface().(complex64)
				gC := gComplex[float32]{Real: real(v), Imaginary: imag(v)}
				if _, err := g.SetP(gC, col); err != nil {
					return "", err
				}
			case reflect.Complex128:
				v := data.Interface().(complex128)
				gC := gComplex[float64]{Real: real(v), Imaginary: imag(v)}
				if _, err := g.SetP(gC, col); err != nil {
					return "", err
				}
			case reflect.Array, reflect.Slice:
				// arrays must be iterated through and rebuilt to retain
				// proper typing
				g.ArrayP(col)
				iCount := data.Len()
				for i := 0; i < iCount; i++ {
					g.ArrayAppendP(data.Index(i).Interface(), col)
				}
			case reflect.Uint:
				v := data.Interface().(uint)
				g.SetP(v, col)
			case reflect.Uint8:
				v := data.Interface().(uint8)
				g.SetP(v, col)
			case reflect.Uint16:
				v := data.Interface().(uint16)
				g.SetP(v, col)
			case reflect.Uint32:
				v := data.Interface().(uint32)
				g.SetP(v, col)
			case reflect.Uint64:
				v := data.Interface().(uint64)
				g.SetP(v, col)
			case reflect.String:
				v := data.Interface().(string)
				g.SetP(v, col)
			default: // unsupported type, default to string
				g.SetP(fmt.Sprintf("%v", data), col)
			}
		}
		bldr.WriteString(g.String())
		bldr.WriteRune(',') // new entry
	}
	toRet := strings.TrimSuffix(bldr.String(), ",") // chomp final comma

	return toRet + "]", nil // close JSON array
}

// buildColumnMap maps each requested top-level field name to its field
// index, for use with reflect.Value.FieldByIndex. Columns that don't name a
// field on st are simply absent from the map, rather than erroring: a
// renderer asked for a column a row type doesn't have just leaves that
// cell blank.
func buildColumnMap(st any, columns []string) map[string][]int {
	t := reflect.TypeOf(st)
	columnMap := make(map[string][]int, len(columns))
	for _, col := range columns {
		if field, found := t.FieldByName(col); found {
			columnMap[col] = field.Index
		}
	}
	return columnMap
}
