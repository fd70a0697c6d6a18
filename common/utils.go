package common

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

type Vec2 = mgl32.Vec2
type Vec3 = mgl32.Vec3
type Vec4 = mgl32.Vec4
type Mat4 = mgl32.Mat4

type DVec2 = mgl64.Vec2
type DVec3 = mgl64.Vec3

// AssertTrue panics when an internal invariant does not hold.
func AssertTrue(ok bool, msgAndArgs ...any) {
	if ok {
		return
	}
	if len(msgAndArgs) == 0 {
		panic("assertion failed")
	}
	if format, isStr := msgAndArgs[0].(string); isStr {
		panic(fmt.Sprintf("assertion failed: "+format, msgAndArgs[1:]...))
	}
	panic(fmt.Sprint(append([]any{"assertion failed: "}, msgAndArgs...)...))
}
