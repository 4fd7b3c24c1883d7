/*
 *
 * Copyright 2020 gRPC authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

package grpclog

import (
	"fmt"
)

// componentData records the settings for a component and forwards its log
// calls to the package-level logger, tagging each line with the component
// name.
type componentData struct {
	name string
}

var cache = map[string]*componentData{}

func (c *componentData) Info(args ...any) {
	logger.Infoln(append([]any{"[" + c.name + "]"}, args...)...)
}

func (c *componentData) Warning(args ...any) {
	logger.Warningln(append([]any{"[" + c.name + "]"}, args...)...)
}

func (c *componentData) Error(args ...any) {
	logger.Errorln(append([]any{"[" + c.name + "]"}, args...)...)
}

func (c *componentData) Fatal(args ...any) {
	logger.Fatalln(append([]any{"[" + c.name + "]"}, args...)...)
}

func (c *componentData) Infof(format string, args ...any) {
	c.Info(fmt.Sprintf(format, args...))
}

func (c *componentData) Warningf(format string, args ...any) {
	c.Warning(fmt.Sprintf(format, args...))
}

func (c *componentData) Errorf(format string, args ...any) {
	c.Error(fmt.Sprintf(format, args...))
}

func (c *componentData) Fatalf(format string, args ...any) {
	c.Fatal(fmt.Sprintf(format, args...))
}

func (c *componentData) Infoln(args ...any)    { c.Info(args...) }
func (c *componentData) Warningln(args ...any) { c.Warning(args...) }
func (c *componentData) Errorln(args ...any)   { c.Error(args...) }
func (c *componentData) Fatalln(args ...any)   { c.Fatal(args...) }

func (c *componentData) V(l VerboseLevel) bool {
	return V(l)
}

// Component creates a new component and returns it for logging. If a
// component with the name already exists, nothing will be created and it
// will be returned.
func Component(componentName string) Logger {
	if c, ok := cache[componentName]; ok {
		return c
	}
	c := &componentData{name: componentName}
	cache[componentName] = c
	return c
}
