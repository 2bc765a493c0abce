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

package conf

import (
	"github.com/sirupsen/logrus"
)

const ConfFileName = "kuiperopt.yaml"

// Config is the process wide setting of the command line tool. Libraries take
// their settings explicitly and never read it.
var Config *KuiperOptConf

type KuiperOptConf struct {
	Basic struct {
		Debug      bool `yaml:"debug"`
		ConsoleLog bool `yaml:"consoleLog"`
	}
	Optimizer struct {
		// IterationFactor multiplies the phase start node count to get the default fixpoint cap
		IterationFactor      int  `yaml:"iterationFactor"`
		FailOnNonConvergence bool `yaml:"failOnNonConvergence"`
		Tracing              bool `yaml:"tracing"`
	}
	Catalog struct {
		Path   string `yaml:"path"`
		Sqlite string `yaml:"sqlite"`
	}
}

func defaultConf() KuiperOptConf {
	kc := KuiperOptConf{}
	kc.Optimizer.IterationFactor = 10
	return kc
}

// InitConf loads the configuration file. An empty path keeps the defaults.
func InitConf(p string) error {
	kc := defaultConf()
	if p != "" {
		if err := LoadConfigFromPath(p, &kc); err != nil {
			return err
		}
	}
	if kc.Optimizer.IterationFactor <= 0 {
		Log.Warnf("invalid optimizer.iterationFactor %d, set to 10", kc.Optimizer.IterationFactor)
		kc.Optimizer.IterationFactor = 10
	}
	Config = &kc
	if Config.Basic.Debug {
		Log.SetLevel(logrus.DebugLevel)
	}
	return nil
}
