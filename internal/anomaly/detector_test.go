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

package anomaly

import (
	"context"
	"testing"

	"appstats/internal/counter"
)

type stubSource struct {
	anomalies []counter.Anomaly
}

func (s stubSource) FindAnomalies(_ context.Context, _, _ int, _ float64) ([]counter.Anomaly, error) {
	return s.anomalies, nil
}

type recordingNotifier struct {
	got []counter.Anomaly
}

func (r *recordingNotifier) Notify(_ context.Context, anomalies []counter.Anomaly) error {
	r.got = anomalies
	return nil
}

func TestDetectorRunCombinesAllSources(t *testing.T) {
	a := counter.Anomaly{AppID: "app1", Name: "req", Field: counter.NumberField}
	b := counter.Anomaly{AppID: "app2", Name: "req", Field: counter.NumberField}
	notifier := &recordingNotifier{}
	d := New([]Source{stubSource{[]counter.Anomaly{a}}, stubSource{[]counter.Anomaly{b}}}, notifier, nil)

	got, err := d.Run(context.Background(), 24, 2, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 anomalies, got %d", len(got))
	}
	if len(notifier.got) != 2 {
		t.Fatalf("expected notifier to see 2 anomalies, got %d", len(notifier.got))
	}
}

func TestDetectorRunRejectsInvalidWindows(t *testing.T) {
	d := New(nil, &recordingNotifier{}, nil)

	if _, err := d.Run(context.Background(), 2, 24, 0.2); err == nil {
		t.Fatal("expected error when ref_hours <= check_hours")
	}
	if _, err := d.Run(context.Background(), 24, 2, 1.5); err == nil {
		t.Fatal("expected error when sensitivity out of (0,1)")
	}
}
