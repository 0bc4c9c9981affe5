// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestWrap(t *testing.T) {
	if Wrap(nil, "msg") != nil {
		t.Error("Wrap(nil, msg) should return nil")
	}
	err := errors.New("base")
	wrapped := Wrap(err, "context")
	if wrapped == nil {
		t.Fatal("Wrap(err, msg) should not return nil")
	}
	if !errors.Is(wrapped, err) {
		t.Error("wrapped error should unwrap to base")
	}
	if !strings.HasPrefix(wrapped.Error(), "context: ") {
		t.Errorf("Error() = %q", wrapped.Error())
	}
}

func TestWrapf(t *testing.T) {
	if Wrapf(nil, "format %s", "x") != nil {
		t.Error("Wrapf(nil, ...) should return nil")
	}
	err := errors.New("base")
	wrapped := Wrapf(err, "prompt=%s", "a")
	if !errors.Is(wrapped, err) {
		t.Error("wrapped error should unwrap to base")
	}
	if wrapped.Error() != "prompt=a: base" {
		t.Errorf("Error() = %q", wrapped.Error())
	}
}

func TestInvalidArgf(t *testing.T) {
	err := InvalidArgf("name %q is empty", "")
	if !IsInvalidArg(err) {
		t.Error("InvalidArgf should wrap ErrInvalidArg")
	}
	if IsNotFound(err) {
		t.Error("InvalidArgf should not be ErrNotFound")
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(fmt.Errorf("prompt x: %w", ErrNotFound)) {
		t.Error("wrapped ErrNotFound should be detected")
	}
	if IsNotFound(errors.New("other")) {
		t.Error("unrelated error should not be ErrNotFound")
	}
	if IsNotFound(nil) {
		t.Error("nil should not be ErrNotFound")
	}
}
