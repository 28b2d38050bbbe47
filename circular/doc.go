// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package circular provides small sizing helpers for the doubling-chunk
// node arena used by the interval tree.
package circular
