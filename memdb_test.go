package block_exec

import (
	"testing"

	storetypes "cosmossdk.io/store/types"
	"github.com/test-go/testify/require"
)

func TestMemDBIterator(t *testing.T) {
	db := NewMemDB()
	for _, k := range []string{"a", "b", "c", "d"} {
		db.Set(Key(k), Value("v"+k))
	}

	collect := func(it storetypes.Iterator) []string {
		defer it.Close()

		var keys []string
		for ; it.Valid(); it.Next() {
			keys = append(keys, string(it.Key()))
		}
		return keys
	}

	require.Equal(t, []string{"a", "b", "c", "d"}, collect(db.Iterator(nil, nil)))
	require.Equal(t, []string{"b", "c"}, collect(db.Iterator(Key("b"), Key("d"))))
	require.Equal(t, []string{"d", "c", "b", "a"}, collect(db.ReverseIterator(nil, nil)))
	require.Equal(t, []string{"c", "b"}, collect(db.ReverseIterator(Key("b"), Key("d"))))
	require.Empty(t, collect(db.Iterator(Key("x"), nil)))

	it := db.Iterator(Key("b"), Key("c"))
	defer it.Close()
	require.True(t, it.Valid())
	require.Equal(t, []byte("b"), it.Key())
	require.Equal(t, []byte("vb"), it.Value())
	it.Next()
	require.False(t, it.Valid())
}

func TestMemDBDelete(t *testing.T) {
	db := NewMemDB()
	db.Set(Key("a"), Value("1"))
	require.True(t, db.Has(Key("a")))

	db.Delete(Key("a"))
	require.False(t, db.Has(Key("a")))
	require.Nil(t, db.Get(Key("a")))

	require.Panics(t, func() {
		db.Set(Key("b"), nil)
	})
}
