// Copyright 2026 EMQ Technologies Co., Ltd.
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

package timex

import (
	"os"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
)

var (
	Clock     clock.Clock
	IsTesting bool
)

func init() {
	for _, arg := range os.Args {
		if strings.HasPrefix(arg, "-test.") {
			IsTesting = true
			break
		}
	}
	InitClock()
}

func InitClock() {
	if IsTesting {
		Clock = clock.NewMock()
	} else {
		Clock = clock.New()
	}
}

func GetNow() time.Time {
	return Clock.Now()
}

// Since measures the elapsed time on the package clock. Under test the mock
// clock only moves through Add.
func Since(t time.Time) time.Duration {
	return Clock.Since(t)
}

func Add(d time.Duration) {
	if IsTesting {
		Clock.(*clock.Mock).Add(d)
	}
}
