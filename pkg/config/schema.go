/*
 * Copyright 2021-2022 by Nedim Sabic Sabic
 * https://www.fibratus.io
 * All Rights Reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

var schema = `
{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"definitions": {
		"duration": {"type": ["string", "integer"], "pattern": "^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$", "minimum": 0}
	},

	"type": "object",
	"properties": {
		"config-file":		{"type": "string"},
		"process":			{"type": "string"},
		"output":			{"type": "string"},
		"x86":				{"type": "boolean"},
		"dll":				{"type": "string"},
		"debug-privilege":	{"type": "boolean"},
		"search-interval":	{"$ref": "#/definitions/duration"},
		"search-timeout":	{"$ref": "#/definitions/duration"},
		"injector-version":	{"type": "string"},
		"assembler": {
			"type": "object",
			"properties": {
				"sample-format":	{"type": "string", "enum": ["auto", "pcm", "float"]}
			},
			"additionalProperties": false
		},
		"pipe": {
			"type": "object",
			"properties": {
				"write-timeout":	{"$ref": "#/definitions/duration"},
				"connect-timeout":	{"$ref": "#/definitions/duration"}
			},
			"additionalProperties": false
		},
		"logging": {
			"type": "object",
			"properties": {
				"level":		{"type": "string", "enum": ["debug", "info", "warn", "warning", "error", "fatal", "panic", "trace", "DEBUG", "INFO", "WARN", "WARNING", "ERROR", "FATAL", "PANIC", "TRACE"]},
				"max-age":		{"type": "integer", "minimum": 0},
				"max-backups":	{"type": "integer", "minimum": 0},
				"max-size":		{"type": "integer", "minimum": 1},
				"formatter":	{"type": "string", "enum": ["json", "text"]},
				"path":			{"type": "string"},
				"log-stdout":	{"type": "boolean"},
				"compress":		{"type": "boolean"}
			},
			"additionalProperties": false
		}
	},
	"additionalProperties": false
}
`
