// Package testutil holds the controller configuration fixture shared by
// package tests.
package testutil

import (
	"io"
	"testing"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"
)

// FixturePath is where WriteFixture places the document.
const FixturePath = "/plant/Plant.L5X"

// Fixture is a small controller export:
//
//   - Local (chassis) has no comments and is dropped from the tree.
//   - DI_Card (Local:1) has a base point .DATA with two bits below it and a
//     simple .FAULT point; one alias input.
//   - DO_Card (Local:2) has outputs including an orphan bit (.SPARE.3) and a
//     four-segment operand that is never displayed.
//   - Cube_A is a frame device addressed by its own name.
//   - Connections exercise reversed endpoints, lower-case port segments,
//     duplicate edges and a reference without a tag part.
const Fixture = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<RSLogix5000Content SchemaRevision="1.0" TargetName="Plant">
<Controller Name="Plant">
<Modules>
<Module Name="Local" ParentModule="Local">
<Ports>
<Port Id="1" Address="0" Type="ICP"/>
</Ports>
</Module>
<Module Name="DI_Card" ParentModule="Local">
<Ports>
<Port Id="1" Address="1" Type="ICP"/>
</Ports>
<Communications>
<Connections>
<Connection Name="Standard">
<InputTag>
<Comments>
<Comment Operand=".DATA"><![CDATA[Inputs word]]></Comment>
<Comment Operand=".DATA.0"><![CDATA[Start button]]></Comment>
<Comment Operand=".DATA.1"><![CDATA[Stop button]]></Comment>
<Comment Operand=".FAULT">Card &amp; channel fault</Comment>
</Comments>
</InputTag>
<InAliasTag>
<Comments>
<Comment Operand=".STATUS"><![CDATA[Status word]]></Comment>
</Comments>
</InAliasTag>
</Connection>
</Connections>
</Communications>
</Module>
<Module Name="DO_Card" ParentModule="Local">
<Ports>
<Port Id="1" Address="2" Type="ICP"/>
</Ports>
<Communications>
<Connections>
<Connection Name="Standard">
<OutputTag>
<Comments>
<Comment Operand=".DATA"><![CDATA[Outputs word]]></Comment>
<Comment Operand=".DATA.0"><![CDATA[Motor run]]></Comment>
<Comment Operand=".SPARE.3"><![CDATA[Spare]]></Comment>
<Comment Operand=".X.Y.Z"><![CDATA[Deep]]></Comment>
</Comments>
</OutputTag>
</Connection>
</Connections>
</Communications>
</Module>
<Module Name="Cube_A" ParentModule="Local">
<Ports>
<Port Id="1" Address="3" Type="ICP"/>
</Ports>
<Communications>
<Connections>
<Connection Name="Standard">
<InputTag>
<Comments>
<Comment Operand=".PT01"><![CDATA[Pressure]]></Comment>
</Comments>
</InputTag>
</Connection>
</Connections>
</Communications>
</Module>
</Modules>
<Programs>
<Program Name="MainProgram">
<Tags>
<Tag Name="StartPB" DataType="BOOL"><Description><![CDATA[Start pushbutton]]></Description></Tag>
<Tag Name="StopPB" DataType="BOOL"/>
<Tag Name="MotorRun" DataType="BOOL">
<Data/>
</Tag>
<Tag Name="Pressure" DataType="REAL"><Description><![CDATA[Line pressure]]></Description></Tag>
</Tags>
</Program>
</Programs>
<ParameterConnections>
<ParameterConnection EndPoint1="Local:1:I.DATA.0" EndPoint2="\MainProgram.StartPB"/>
<ParameterConnection EndPoint1="\MainProgram.StopPB" EndPoint2="Local:1:I.DATA.1"/>
<ParameterConnection EndPoint1="Local:1:I.DATA.0" EndPoint2="\MainProgram.Duplicate"/>
<ParameterConnection EndPoint1="Cube_A:i.pt01" EndPoint2="\MainProgram.Pressure"/>
<ParameterConnection EndPoint1="Local:2:O.DATA.0" EndPoint2="\MainProgram.MotorRun"/>
<ParameterConnection EndPoint1="Local:2:O.DATA" EndPoint2="\NoTagPart"/>
</ParameterConnections>
</Controller>
</RSLogix5000Content>
`

// WriteFixture stores Fixture in a fresh in-memory filesystem.
func WriteFixture(t *testing.T) billy.Filesystem {
	t.Helper()
	return WriteDocument(t, Fixture)
}

// WriteDocument stores content at FixturePath in a fresh in-memory filesystem.
func WriteDocument(t *testing.T, content string) billy.Filesystem {
	t.Helper()
	fsys := memfs.New()
	f, err := fsys.Create(FixturePath)
	require.NoError(t, err)
	_, err = f.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return fsys
}

// ReadFile returns the full content of path in fsys.
func ReadFile(t *testing.T, fsys billy.Filesystem, path string) []byte {
	t.Helper()
	f, err := fsys.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return data
}
