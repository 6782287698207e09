// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

package counter

import "errors"

// Sentinel errors per the taxonomy in spec §7. Unknown fields are not an
// error — incrby silently ignores them, since fields are declaratively
// configured and drift is common.
var (
	ErrInvalidName  = errors.New("counter: name must not contain ','")
	ErrInvalidAppID = errors.New("counter: app_id must not contain ','")

	// ErrLockHeld is returned internally by update() to signal a clean,
	// non-fatal no-op; callers should treat it as "nothing to do this tick".
	ErrLockHeld = errors.New("counter: advisory lock is held by another worker")
)
