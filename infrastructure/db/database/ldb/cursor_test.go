package ldb

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/cnchain/cnd/infrastructure/db/database"
)

func prepareDatabaseForTest(t *testing.T, testName string) (ldb *LevelDB, teardownFunc func()) {
	ldb, err := NewLevelDB(t.TempDir(), 8)
	if err != nil {
		t.Fatalf("%s: NewLevelDB unexpectedly failed: %s", testName, err)
	}
	teardownFunc = func() {
		err = ldb.Close()
		if err != nil {
			t.Fatalf("%s: Close unexpectedly failed: %s", testName, err)
		}
	}
	return ldb, teardownFunc
}

func validateCurrentCursorKeyAndValue(t *testing.T, testName string, cursor database.Cursor,
	expectedSuffix []byte, expectedValue []byte) {

	cursorKey, err := cursor.Key()
	if err != nil {
		t.Fatalf("%s: Key unexpectedly failed: %s", testName, err)
	}
	if !bytes.Equal(cursorKey.Suffix(), expectedSuffix) {
		t.Fatalf("%s: Key returned wrong suffix. Want: %s, got: %s",
			testName, expectedSuffix, cursorKey.Suffix())
	}
	cursorValue, err := cursor.Value()
	if err != nil {
		t.Fatalf("%s: Value unexpectedly failed for key %s: %s", testName, cursorKey, err)
	}
	if !bytes.Equal(cursorValue, expectedValue) {
		t.Fatalf("%s: Value returned wrong value for key %s. Want: %s, got: %s",
			testName, cursorKey, expectedValue, cursorValue)
	}
}

func TestCursorSanity(t *testing.T) {
	ldb, teardownFunc := prepareDatabaseForTest(t, "TestCursorSanity")
	defer teardownFunc()

	bucket := database.MakeBucket([]byte("s"), []byte("7"))
	sibling := database.MakeBucket([]byte("s"), []byte("70"))
	for i := 0; i < 10; i++ {
		err := ldb.Put(bucket.Key([]byte(fmt.Sprintf("key%d", i))), []byte(fmt.Sprintf("value%d", i)))
		if err != nil {
			t.Fatalf("TestCursorSanity: Put unexpectedly failed: %s", err)
		}
	}
	err := ldb.Put(sibling.Key([]byte("key0")), []byte("sibling"))
	if err != nil {
		t.Fatalf("TestCursorSanity: Put unexpectedly failed: %s", err)
	}

	cursor, err := ldb.Cursor(bucket)
	if err != nil {
		t.Fatalf("TestCursorSanity: Cursor unexpectedly failed: %s", err)
	}
	defer cursor.Close()

	if !cursor.First() {
		t.Fatalf("TestCursorSanity: First unexpectedly returned non-existence")
	}
	validateCurrentCursorKeyAndValue(t, "TestCursorSanity", cursor, []byte("key0"), []byte("value0"))

	count := 1
	for cursor.Next() {
		count++
	}
	if count != 10 {
		t.Fatalf("TestCursorSanity: cursor visited %d entries, want 10", count)
	}

	err = cursor.Seek(bucket.Key([]byte("key5")))
	if err != nil {
		t.Fatalf("TestCursorSanity: Seek unexpectedly failed: %s", err)
	}
	validateCurrentCursorKeyAndValue(t, "TestCursorSanity", cursor, []byte("key5"), []byte("value5"))

	err = cursor.Seek(bucket.Key([]byte("zzz")))
	if !database.IsNotFoundError(err) {
		t.Fatalf("TestCursorSanity: Seek past the end returned %v, want ErrNotFound", err)
	}
	_, err = cursor.Key()
	if !database.IsNotFoundError(err) {
		t.Fatalf("TestCursorSanity: Key of an exhausted cursor returned %v", err)
	}
}

func TestCursorCloseErrors(t *testing.T) {
	ldb, teardownFunc := prepareDatabaseForTest(t, "TestCursorCloseErrors")
	defer teardownFunc()

	cursor, err := ldb.Cursor(database.MakeBucket([]byte("bucket")))
	if err != nil {
		t.Fatalf("TestCursorCloseErrors: Cursor unexpectedly failed: %s", err)
	}
	err = cursor.Close()
	if err != nil {
		t.Fatalf("TestCursorCloseErrors: Close unexpectedly failed: %s", err)
	}

	operations := map[string]func() error{
		"Seek":  func() error { return cursor.Seek(database.MakeBucket([]byte("bucket")).Key(nil)) },
		"Key":   func() error { _, err := cursor.Key(); return err },
		"Value": func() error { _, err := cursor.Value(); return err },
		"Close": cursor.Close,
	}
	for name, operation := range operations {
		err := operation()
		if err == nil || !strings.Contains(err.Error(), "closed cursor") {
			t.Fatalf("TestCursorCloseErrors: %s returned %v, want a closed cursor error", name, err)
		}
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("TestCursorCloseErrors: Next on a closed cursor did not panic")
			}
		}()
		cursor.Next()
	}()
}
