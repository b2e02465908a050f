package db

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaths(t *testing.T) {
	type CustomInt int
	type S struct {
		I   int        `db:"I"`
		PI  *int       `db:"PI"`
		CI  CustomInt  `db:"CI"`
		PCI *CustomInt `db:"PCI"`
		B   bool       `db:"B"`
		PB  *bool      `db:"PB"`

		NoTag int
	}
	type Nested struct {
		S  S  `db:"S"`
		PS *S `db:"PS"`

		NoTag S
	}

	names, paths := getColumnNamesAndPaths(reflect.TypeOf(Nested{}), nil, nil)

	var joined []string
	for _, name := range names {
		joined = append(joined, strings.Join(name, "."))
	}
	assert.Equal(t, []string{
		"S.I", "S.PI",
		"S.CI", "S.PCI",
		"S.B", "S.PB",
		"PS.I", "PS.PI",
		"PS.CI", "PS.PCI",
		"PS.B", "PS.PB",
	}, joined)

	var rawPaths [][]int
	for _, path := range paths {
		rawPaths = append(rawPaths, []int(path))
	}
	assert.Equal(t, [][]int{
		{0, 0}, {0, 1}, {0, 2}, {0, 3}, {0, 4}, {0, 5},
		{1, 0}, {1, 1}, {1, 2}, {1, 3}, {1, 4}, {1, 5},
	}, rawPaths)

	testStruct := Nested{}
	for i, path := range paths {
		val, field := followPathThroughStructs(reflect.ValueOf(&testStruct), path)
		assert.True(t, val.IsValid())
		assert.True(t, strings.Contains(joined[i], field.Name))
	}
	assert.NotNil(t, testStruct.PS, "following a path through a nil pointer allocates it")
}

func TestCompileQuery(t *testing.T) {
	type Thread struct {
		ID      int  `db:"id"`
		FirstID *int `db:"first_id"`
	}
	type Attachment struct {
		ID     uuid.UUID `db:"id"`
		PostID int       `db:"post_id"`
	}
	type postAndThread struct {
		Thread     Thread     `db:"thread"`
		Attachment Attachment `db:"a"`
	}

	t.Run("plain columns", func(t *testing.T) {
		compiled := compileQuery("SELECT $columns FROM thread", reflect.TypeOf(Thread{}))
		assert.Equal(t, "SELECT id, first_id FROM thread", compiled.query)
		assert.Len(t, compiled.fieldPaths, 2)
	})
	t.Run("prefixed columns", func(t *testing.T) {
		compiled := compileQuery("SELECT $columns{t} FROM thread AS t", reflect.TypeOf(Thread{}))
		assert.Equal(t, "SELECT t.id, t.first_id FROM thread AS t", compiled.query)
	})
	t.Run("nested structs", func(t *testing.T) {
		compiled := compileQuery("SELECT $columns FROM thread JOIN attachment AS a", reflect.TypeOf(postAndThread{}))
		assert.Equal(t, "SELECT thread.id, thread.first_id, a.id, a.post_id FROM thread JOIN attachment AS a", compiled.query)
	})
	t.Run("no placeholder", func(t *testing.T) {
		compiled := compileQuery("SELECT id FROM post", reflect.TypeOf(0))
		assert.Equal(t, "SELECT id FROM post", compiled.query)
		assert.Nil(t, compiled.fieldPaths)
	})
	t.Run("placeholder on a scalar", func(t *testing.T) {
		assert.Panics(t, func() {
			compileQuery("SELECT $columns FROM post", reflect.TypeOf(0))
		})
	})
}

func TestTypeIsQueryable(t *testing.T) {
	type MessageState int
	type Action string

	assert.True(t, typeIsQueryable(reflect.TypeOf(0)))
	assert.True(t, typeIsQueryable(reflect.TypeOf("")))
	assert.True(t, typeIsQueryable(reflect.TypeOf(time.Time{})))
	assert.True(t, typeIsQueryable(reflect.TypeOf(uuid.UUID{})))
	assert.True(t, typeIsQueryable(reflect.TypeOf(MessageState(0))))
	assert.True(t, typeIsQueryable(reflect.TypeOf(Action(""))))
	assert.False(t, typeIsQueryable(reflect.TypeOf(struct{ A int }{})))
}

func TestSetValueFromDB(t *testing.T) {
	type MessageState int

	var state MessageState
	setValueFromDB(reflect.ValueOf(&state).Elem(), reflect.ValueOf(int32(2)))
	assert.Equal(t, MessageState(2), state)

	var id uuid.UUID
	raw := [16]byte{1, 2, 3}
	setValueFromDB(reflect.ValueOf(&id).Elem(), reflect.ValueOf(raw))
	assert.Equal(t, uuid.UUID(raw), id)

	var count int
	assert.Panics(t, func() {
		setValueFromDB(reflect.ValueOf(&count).Elem(), reflect.ValueOf(time.Now()))
	})
}

func TestQueryBuilder(t *testing.T) {
	t.Run("happy paths", func(t *testing.T) {
		var qb QueryBuilder
		qb.Add("SELECT id FROM post WHERE thread_id = $?", 1)
		qb.Add("AND NOT deleted")
		qb.Add("AND id != ALL($?) AND position > $?", []int{10, 20}, 3)

		assert.Equal(t, "SELECT id FROM post WHERE thread_id = $1\nAND NOT deleted\nAND id != ALL($2) AND position > $3\n", qb.String())
		require.Len(t, qb.Args(), 3)
		assert.Equal(t, []int{10, 20}, qb.Args()[1])
	})
	t.Run("too few arguments", func(t *testing.T) {
		var qb QueryBuilder
		assert.Panics(t, func() {
			qb.Add("WHERE id = $? AND thread_id = $?", 1)
		})
	})
	t.Run("too many arguments", func(t *testing.T) {
		var qb QueryBuilder
		assert.Panics(t, func() {
			qb.Add("WHERE id = $?", 1, 2)
		})
	})
}

func TestGetQueryName(t *testing.T) {
	name, ok := GetQueryName(`
		---- Lock posts for merge
		SELECT id FROM post FOR UPDATE
	`)
	assert.True(t, ok)
	assert.Equal(t, "Lock posts for merge", name)

	_, ok = GetQueryName("SELECT 1")
	assert.False(t, ok)
}
