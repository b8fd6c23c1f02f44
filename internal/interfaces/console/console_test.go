package console

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_PlainOutput(t *testing.T) {
	var buf bytes.Buffer
	n := NewNotifier(&buf, false)

	n.Success("Operation succeeded")
	n.Warning("Please select at least one record")
	n.Error("Network error")

	assert.Equal(t, "✓ Operation succeeded\n! Please select at least one record\n✗ Network error\n", buf.String())
}

func TestNotifier_Colors(t *testing.T) {
	var buf bytes.Buffer
	NewNotifier(&buf, true).Error("boom")

	assert.Equal(t, colorRed+"✗"+colorReset+" boom\n", buf.String())
}

func TestConfirmer_Answers(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(strconv.Quote(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			c := NewConfirmer(strings.NewReader(tt.input), &out, false)

			assert.Equal(t, tt.want, c.Confirm(context.Background(), "Submit the data?"))
			assert.Contains(t, out.String(), "Submit the data?")
		})
	}
}

func TestConfirmer_AssumeYes(t *testing.T) {
	var out bytes.Buffer
	c := NewConfirmer(strings.NewReader(""), &out, true)

	assert.True(t, c.Confirm(context.Background(), "Delete?"))
	assert.Equal(t, "Delete? [y/N] y\n", out.String())
}

func TestConfirmer_ContextEnds(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	c := NewConfirmer(r, io.Discard, false)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.False(t, c.Confirm(ctx, "Still there?"))
}

func TestNavigator(t *testing.T) {
	var seen []string
	n := NewNavigator("/home", func(loc string) { seen = append(seen, loc) })

	n.Navigate("/pms/brand")
	n.Navigate("/pms/brand/update?id=3")
	n.Back()
	assert.Equal(t, "/pms/brand", n.Current())
	n.Back()
	n.Back()
	assert.Equal(t, "/home", n.Current())
	assert.Equal(t, []string{"/pms/brand", "/pms/brand/update?id=3", "/pms/brand", "/home", "/home"}, seen)
}

type item struct {
	ID   int64
	Name string
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	cols := []Column[item]{
		{Header: "ID", Value: func(i item) string { return strconv.FormatInt(i.ID, 10) }},
		{Header: "NAME", Value: func(i item) string { return i.Name }},
	}
	rows := []item{{ID: 7, Name: "Acme\tCorp"}, {ID: 12, Name: "Globex"}}

	require.NoError(t, RenderTable(&buf, cols, rows, func(i item) bool { return i.ID == 12 }))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "   ID  NAME", lines[0])
	assert.Equal(t, "   7   Acme Corp", lines[1])
	assert.Equal(t, "*  12  Globex", lines[2])
}

func TestPageFooter(t *testing.T) {
	assert.Equal(t, "page 2/3, 5 per page, 12 total", PageFooter(2, 5, 3, 12))
	assert.Equal(t, "page 1/1, 10 per page, 0 total", PageFooter(1, 10, 0, 0))
}
