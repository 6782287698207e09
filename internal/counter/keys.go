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

import "fmt"

// Key encoding uses colons rather than the comma-separated scheme of the
// original implementation; the comma stays reserved for app_id/name so
// identifiers never collide with the separator (spec §9).

func rollingKey(prefix, appID, name string, interval, secsPerPart int, field Field) string {
	return fmt.Sprintf("%s:%d:%d:%s:%s:%s", prefix, interval, secsPerPart, appID, name, field)
}

func rollingLastValKey(prefix, appID, name string, interval, secsPerPart int, field Field) string {
	return fmt.Sprintf("%s:%d:%d:last_val:%s:%s:%s", prefix, interval, secsPerPart, appID, name, field)
}

func rollingUpdatedKey(prefix, appID, name string, interval, secsPerPart int, field Field) string {
	return fmt.Sprintf("%s:%d:%d:updated:%s:%s:%s", prefix, interval, secsPerPart, appID, name, field)
}

func rollingAppIDsKey(prefix string, interval, secsPerPart int) string {
	return fmt.Sprintf("%s:%d:%d:app_ids", prefix, interval, secsPerPart)
}

func rollingNamesKey(prefix, appID string, interval, secsPerPart int) string {
	return fmt.Sprintf("%s:%d:%d:%s:names", prefix, interval, secsPerPart, appID)
}

func rollingLockKey(prefix string, interval, secsPerPart int) string {
	return fmt.Sprintf("%s:%d:%d:lock", prefix, interval, secsPerPart)
}

func periodicKey(prefix string, divider int, appID, name string, field Field) string {
	return fmt.Sprintf("%s:periodic:%d:%s:%s:%s", prefix, divider, appID, name, field)
}

func periodicPrevUpdKey(prefix string, divider int) string {
	return fmt.Sprintf("%s:periodic:%d:prev_upd", prefix, divider)
}

func periodicAppIDsKey(prefix string, divider int) string {
	return fmt.Sprintf("%s:periodic:%d:app_ids", prefix, divider)
}

func periodicNamesKey(prefix string, divider int, appID string) string {
	return fmt.Sprintf("%s:periodic:%d:%s:names", prefix, divider, appID)
}

func periodicLockKey(prefix string, divider int) string {
	return fmt.Sprintf("%s:periodic:%d:lock", prefix, divider)
}
