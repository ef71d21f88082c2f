// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

// Package digicam holds the protobuf messages stored as proio entries.
// Field tags mirror digicam.proto.
package digicam

import (
	proto "github.com/golang/protobuf/proto"
)

type RawEvent struct {
	EventId              uint64    `protobuf:"varint,1,opt,name=event_id,json=eventId,proto3" json:"event_id,omitempty"`
	TriggerFlag          uint32    `protobuf:"varint,2,opt,name=trigger_flag,json=triggerFlag,proto3" json:"trigger_flag,omitempty"`
	EventType            uint32    `protobuf:"varint,3,opt,name=event_type,json=eventType,proto3" json:"event_type,omitempty"`
	LocalCameraClock     int64     `protobuf:"varint,4,opt,name=local_camera_clock,json=localCameraClock,proto3" json:"local_camera_clock,omitempty"`
	PixelId              []uint32  `protobuf:"varint,5,rep,packed,name=pixel_id,json=pixelId,proto3" json:"pixel_id,omitempty"`
	NSamples             uint32    `protobuf:"varint,6,opt,name=n_samples,json=nSamples,proto3" json:"n_samples,omitempty"`
	AdcSamples           []uint32  `protobuf:"varint,7,rep,packed,name=adc_samples,json=adcSamples,proto3" json:"adc_samples,omitempty"`
	DigicamBaseline      []float32 `protobuf:"fixed32,8,rep,packed,name=digicam_baseline,json=digicamBaseline,proto3" json:"digicam_baseline,omitempty"`
	XXX_NoUnkeyedLiteral struct{}  `json:"-"`
	XXX_unrecognized     []byte    `json:"-"`
	XXX_sizecache        int32     `json:"-"`
}

func (m *RawEvent) Reset()         { *m = RawEvent{} }
func (m *RawEvent) String() string { return proto.CompactTextString(m) }
func (*RawEvent) ProtoMessage()    {}

type Shower struct {
	EventId              uint64   `protobuf:"varint,1,opt,name=event_id,json=eventId,proto3" json:"event_id,omitempty"`
	LocalCameraClock     int64    `protobuf:"varint,2,opt,name=local_camera_clock,json=localCameraClock,proto3" json:"local_camera_clock,omitempty"`
	Valid                bool     `protobuf:"varint,3,opt,name=valid,proto3" json:"valid,omitempty"`
	Size                 float64  `protobuf:"fixed64,4,opt,name=size,proto3" json:"size,omitempty"`
	CenX                 float64  `protobuf:"fixed64,5,opt,name=cen_x,json=cenX,proto3" json:"cen_x,omitempty"`
	CenY                 float64  `protobuf:"fixed64,6,opt,name=cen_y,json=cenY,proto3" json:"cen_y,omitempty"`
	Length               float64  `protobuf:"fixed64,7,opt,name=length,proto3" json:"length,omitempty"`
	Width                float64  `protobuf:"fixed64,8,opt,name=width,proto3" json:"width,omitempty"`
	R                    float64  `protobuf:"fixed64,9,opt,name=r,proto3" json:"r,omitempty"`
	Phi                  float64  `protobuf:"fixed64,10,opt,name=phi,proto3" json:"phi,omitempty"`
	Psi                  float64  `protobuf:"fixed64,11,opt,name=psi,proto3" json:"psi,omitempty"`
	Miss                 float64  `protobuf:"fixed64,12,opt,name=miss,proto3" json:"miss,omitempty"`
	Alpha                float64  `protobuf:"fixed64,13,opt,name=alpha,proto3" json:"alpha,omitempty"`
	Skewness             float64  `protobuf:"fixed64,14,opt,name=skewness,proto3" json:"skewness,omitempty"`
	Kurtosis             float64  `protobuf:"fixed64,15,opt,name=kurtosis,proto3" json:"kurtosis,omitempty"`
	XXX_NoUnkeyedLiteral struct{} `json:"-"`
	XXX_unrecognized     []byte   `json:"-"`
	XXX_sizecache        int32    `json:"-"`
}

func (m *Shower) Reset()         { *m = Shower{} }
func (m *Shower) String() string { return proto.CompactTextString(m) }
func (*Shower) ProtoMessage()    {}

func init() {
	proto.RegisterType((*RawEvent)(nil), "digicam.RawEvent")
	proto.RegisterType((*Shower)(nil), "digicam.Shower")
}
