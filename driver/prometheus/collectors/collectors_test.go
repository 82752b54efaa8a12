// SPDX-FileCopyrightText: 2023 Datafuse Labs
//
// SPDX-License-Identifier: Apache-2.0

package collectors_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/databendcloud/databend-client/driver/prometheus/collectors"
)

func TestDriverCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewDriverCollector()); err != nil {
		t.Fatal(err)
	}
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]bool{}
	for _, mf := range mfs {
		got[mf.GetName()] = true
	}
	for _, name := range []string{
		"databend_client_driver_open_connections",
		"databend_client_driver_open_iterators",
		"databend_client_driver_queries",
		"databend_client_driver_query_errors",
		"databend_client_driver_rows_read",
		"databend_client_driver_bytes_uploaded",
		"databend_client_driver_operation_duration_stats",
	} {
		if !got[name] {
			t.Errorf("metric family %s not exported", name)
		}
	}
}
