package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ExampleNewOrderedEnvFromEnvList() {
	env := NewOrderedEnvFromEnvList([]string{"A=B", "C=D", "E", "F=G=H"})

	fmt.Printf("Environ(): %q\n", env.Environ())
	fmt.Printf("Getenv(\"F\"): %q\n", env.Getenv("F"))

	// Output: Environ(): ["A=B" "C=D" "E=" "F=G=H"]
	// Getenv("F"): "G=H"
}

func ExampleOrderedEnv_Unsetenv() {
	env := NewOrderedEnv()
	env.Setenv("A", "B")
	env.Setenv("C", "D")

	fmt.Println("Before:", env.Environ())
	env.Unsetenv("A")
	fmt.Println("After:", env.Environ())

	// Output: Before: [A=B C=D]
	// After: [C=D]
}

func ExampleOrderedEnv_LookupEnv() {
	env := NewOrderedEnv()
	env.Setenv("A", "B")

	val, ok := env.LookupEnv("A")
	fmt.Println("Existing", "val:", val, "ok:", ok)
	val, ok = env.LookupEnv("B")
	fmt.Println("Missing", "val:", val, "ok:", ok)

	// Output: Existing val: B ok: true
	// Missing val:  ok: false
}

func ExampleOrderedEnv_Setenv_overwrite() {
	env := NewOrderedEnv()
	env.Setenv("A", "1")
	env.Setenv("B", "2")
	env.Setenv("A", "3")

	fmt.Println(env.Environ())

	// Output: [A=3 B=2]
}

func TestOrderedEnvOverwriteKeepsSize(t *testing.T) {
	env := NewOrderedEnv()
	assert.Nil(t, env.Setenv("X", "1"))
	assert.Equal(t, "1", env.Getenv("X"))
	before := env.Len()

	assert.Nil(t, env.Setenv("X", "2"))
	assert.Equal(t, "2", env.Getenv("X"))
	assert.Equal(t, before, env.Len())
}

func TestOrderedEnvRejectsInvalidNames(t *testing.T) {
	env := NewOrderedEnv()
	assert.Error(t, env.Setenv("", "value"))
	assert.Error(t, env.Setenv("A=B", "value"))
	assert.Equal(t, 0, env.Len())
}

func TestOrderedEnvExpand(t *testing.T) {
	env := NewOrderedEnv()
	env.Setenv("GREETING", "hello")

	assert.Equal(t, "hello world", env.ExpandEnv("$GREETING world"))
	assert.Equal(t, "hello world", env.ExpandEnv("${GREETING} world"))
	assert.Equal(t, " world", env.ExpandEnv("$MISSING world"))
}

func TestCopyEnv(t *testing.T) {
	src := NewOrderedEnvFromEnvList([]string{"A=B", "C=D"})
	dst := NewOrderedEnv()

	assert.Nil(t, CopyEnv(dst, src))
	assert.Equal(t, src.Environ(), dst.Environ())
}
