package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintTable(t *testing.T) {
	t.Parallel()
	table := NewTableData("NAME", "SIZE")
	table.AddRow("hello", "8")
	table.AddRow("hi", "8")

	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, table))

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "hi")
}

func TestTableData_Accessors(t *testing.T) {
	t.Parallel()
	table := NewTableData("A", "B")
	table.AddRow("1", "2")

	assert.Equal(t, []string{"A", "B"}, table.Headers())
	assert.Equal(t, [][]string{{"1", "2"}}, table.Rows())
}
