package gatekeeper

import (
	"bytes"
	"os"
	"path/filepath"
	"text/template"

	"github.com/agilira/go-errors"

	"github.com/modshield/modshield/internal/errs"
)

var setupTemplate = template.Must(template.New("setup").Parse(
	`from setuptools import setup
from Cython.Build import cythonize

setup(
    name="modshield-runtime",
    version="{{.Version}}",
    ext_modules=cythonize("modshield_runtime.pyx", language_level="3"),
)
`))

var initTemplate = template.Must(template.New("init").Parse(
	`"""modshield gatekeeper runtime (tool v{{.Version}}, built for {{.Platform}})."""
from .modshield_runtime import DecryptionError, run_encrypted

__all__ = ["DecryptionError", "run_encrypted"]
`))

const pyiStub = `class DecryptionError(Exception): ...

def run_encrypted(namespace: dict, rel_path: str) -> None: ...
`

var pyprojectTemplate = template.Must(template.New("pyproject").Parse(
	`[project]
name = "modshield-runtime"
version = "{{.Version}}"
description = "Decrypt-and-execute gatekeeper generated by modshield"
requires-python = ">=3.9"
dependencies = ["cryptography>=41"]

[tool.setuptools]
packages = ["modshield_runtime"]

[tool.setuptools.package-data]
modshield_runtime = ["{{.ArtifactName}}", "*.pyi"]

[build-system]
requires = ["setuptools>=69", "wheel"]
build-backend = "setuptools.build_meta"
`))

type templateParams struct {
	Version      string
	Platform     string
	ArtifactName string
}

func renderToFile(t *template.Template, path string, params templateParams) error {
	var buf bytes.Buffer
	if err := t.Execute(&buf, params); err != nil {
		return errors.Wrap(err, errs.CodeExternalTool, "failed to render "+filepath.Base(path))
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return errors.Wrap(err, errs.CodeExternalTool, "failed to write "+filepath.Base(path))
	}
	return nil
}
