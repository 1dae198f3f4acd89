package grpc

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ProtoFile is the descriptor path the service is published under.
const ProtoFile = "user/v1/user.proto"

// File describes ProtoFile. It lives in the global registry so server
// reflection can answer for the user service.
var File protoreflect.FileDescriptor

func init() {
	fd, err := buildFile()
	if err != nil {
		panic(fmt.Sprintf("build %s: %v", ProtoFile, err))
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic(fmt.Sprintf("register %s: %v", ProtoFile, err))
	}
	File = fd
}

func buildFile() (protoreflect.FileDescriptor, error) {
	empty := (&emptypb.Empty{}).ProtoReflect().Descriptor()
	id := (&wrapperspb.Int64Value{}).ProtoReflect().Descriptor()
	object := (&structpb.Struct{}).ProtoReflect().Descriptor()
	list := (&structpb.ListValue{}).ProtoReflect().Descriptor()

	method := func(name string, in, out protoreflect.MessageDescriptor) *descriptorpb.MethodDescriptorProto {
		return &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(name),
			InputType:  proto.String("." + string(in.FullName())),
			OutputType: proto.String("." + string(out.FullName())),
		}
	}

	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String(ProtoFile),
		Package: proto.String("user.v1"),
		Syntax:  proto.String("proto3"),
		Dependency: []string{
			empty.ParentFile().Path(),
			object.ParentFile().Path(),
			id.ParentFile().Path(),
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("UserService"),
			Method: []*descriptorpb.MethodDescriptorProto{
				method("ListUsers", empty, list),
				method("GetUser", id, object),
				method("CreateUser", object, object),
			},
		}},
		Options: &descriptorpb.FileOptions{
			GoPackage: proto.String("mongo-user-service/internal/adapter/grpc"),
		},
	}

	return protodesc.NewFile(fdp, protoregistry.GlobalFiles)
}
