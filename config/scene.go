// Package config loads joint scenes from YAML files: world parameters,
// solver settings, bodies and the joints between them.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/akmonengine/tendon"
	"github.com/akmonengine/tendon/constraint"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownBody     = errors.New("unknown body")
	ErrDuplicateBody   = errors.New("duplicate body name")
	ErrDuplicateJoint  = errors.New("duplicate joint name")
	ErrSelfJoint       = errors.New("joint links a body to itself")
	ErrEmptyScene      = errors.New("empty scene")
	ErrUnknownBodyType = errors.New("unknown body type")
	ErrUnknownShape    = errors.New("unknown shape")
	ErrEmptyShape      = errors.New("dynamic body without volume")
)

var sceneValidate = validator.New()

type Scene struct {
	World  WorldConfig                    `yaml:"world"`
	Solver constraint.JointSolverSettings `yaml:"solver"`
	Bodies []BodyConfig                   `yaml:"bodies" validate:"required,min=1,dive"`
	Joints []JointConfig                  `yaml:"joints" validate:"dive"`
}

type WorldConfig struct {
	Gravity           mgl64.Vec3 `yaml:"gravity"`
	Substeps          int        `yaml:"substeps" validate:"gte=1"`
	Iterations        int        `yaml:"iterations" validate:"gte=1"`
	PushOutIterations int        `yaml:"push_out_iterations" validate:"gte=0"`
	Workers           int        `yaml:"workers" validate:"gte=1"`
	SolverType        string     `yaml:"solver_type" validate:"omitempty,oneof=none standard gbf quasi"`
	SleepTime         float64    `yaml:"sleep_time" validate:"gte=0"`
	SleepVelocity     float64    `yaml:"sleep_velocity" validate:"gte=0"`
}

// Rotation is an axis and an angle in radians. A zero angle is the identity.
type Rotation struct {
	Axis  mgl64.Vec3 `yaml:"axis"`
	Angle float64    `yaml:"angle"`
}

func (r Rotation) Quat() mgl64.Quat {
	if r.Angle == 0 || r.Axis.LenSqr() == 0 {
		return mgl64.QuatIdent()
	}
	return mgl64.QuatRotate(r.Angle, r.Axis.Normalize())
}

type ShapeConfig struct {
	Type        string     `yaml:"type" validate:"oneof=sphere box"`
	Radius      float64    `yaml:"radius" validate:"gte=0"`
	HalfExtents mgl64.Vec3 `yaml:"half_extents"`
}

type BodyConfig struct {
	Name            string      `yaml:"name" validate:"required"`
	Type            string      `yaml:"type" validate:"oneof=dynamic static kinematic"`
	Shape           ShapeConfig `yaml:"shape"`
	Density         float64     `yaml:"density" validate:"gt=0"`
	Position        mgl64.Vec3  `yaml:"position"`
	Rotation        Rotation    `yaml:"rotation"`
	Velocity        mgl64.Vec3  `yaml:"velocity"`
	AngularVelocity mgl64.Vec3  `yaml:"angular_velocity"`
	LinearDamping   float64     `yaml:"linear_damping" validate:"gte=0"`
	AngularDamping  float64     `yaml:"angular_damping" validate:"gte=0"`
}

// SoftConfig turns the limits it is attached to into springs
type SoftConfig struct {
	Stiffness float64 `yaml:"stiffness" validate:"gte=0"`
	Damping   float64 `yaml:"damping" validate:"gte=0"`
	ForceMode string  `yaml:"force_mode" validate:"omitempty,oneof=acceleration force"`
}

type LinearDriveConfig struct {
	PositionAxes   [3]bool    `yaml:"position_axes"`
	VelocityAxes   [3]bool    `yaml:"velocity_axes"`
	PositionTarget mgl64.Vec3 `yaml:"position_target"`
	VelocityTarget mgl64.Vec3 `yaml:"velocity_target"`
	Stiffness      float64    `yaml:"stiffness" validate:"gte=0"`
	Damping        float64    `yaml:"damping" validate:"gte=0"`
	ForceMode      string     `yaml:"force_mode" validate:"omitempty,oneof=acceleration force"`
}

type LinearConfig struct {
	Motion          [3]string         `yaml:"motion" validate:"dive,oneof=free limited locked"`
	Limit           float64           `yaml:"limit" validate:"gte=0"`
	Soft            *SoftConfig       `yaml:"soft"`
	Restitution     float64           `yaml:"restitution" validate:"gte=0,lte=1"`
	ContactDistance float64           `yaml:"contact_distance" validate:"gte=0"`
	Drive           LinearDriveConfig `yaml:"drive"`
}

type AngularDriveConfig struct {
	SLerpPosition  bool       `yaml:"slerp_position"`
	SLerpVelocity  bool       `yaml:"slerp_velocity"`
	TwistPosition  bool       `yaml:"twist_position"`
	TwistVelocity  bool       `yaml:"twist_velocity"`
	SwingPosition  bool       `yaml:"swing_position"`
	SwingVelocity  bool       `yaml:"swing_velocity"`
	PositionTarget Rotation   `yaml:"position_target"`
	VelocityTarget mgl64.Vec3 `yaml:"velocity_target"`
	Stiffness      float64    `yaml:"stiffness" validate:"gte=0"`
	Damping        float64    `yaml:"damping" validate:"gte=0"`
	ForceMode      string     `yaml:"force_mode" validate:"omitempty,oneof=acceleration force"`
}

// AngularConfig axes are ordered twist, swing1, swing2
type AngularConfig struct {
	Motion               [3]string          `yaml:"motion" validate:"dive,oneof=free limited locked"`
	Limits               [3]float64         `yaml:"limits" validate:"dive,gte=0"`
	SoftTwist            *SoftConfig        `yaml:"soft_twist"`
	SoftSwing            *SoftConfig        `yaml:"soft_swing"`
	TwistRestitution     float64            `yaml:"twist_restitution" validate:"gte=0,lte=1"`
	SwingRestitution     float64            `yaml:"swing_restitution" validate:"gte=0,lte=1"`
	TwistContactDistance float64            `yaml:"twist_contact_distance" validate:"gte=0"`
	SwingContactDistance float64            `yaml:"swing_contact_distance" validate:"gte=0"`
	Drive                AngularDriveConfig `yaml:"drive"`
}

// BreakConfig thresholds are disabled when zero
type BreakConfig struct {
	Force  float64 `yaml:"force" validate:"gte=0"`
	Torque float64 `yaml:"torque" validate:"gte=0"`
}

// PlasticityConfig limits are disabled when zero
type PlasticityConfig struct {
	LinearLimit  float64 `yaml:"linear_limit" validate:"gte=0"`
	AngularLimit float64 `yaml:"angular_limit" validate:"gte=0"`
	Type         string  `yaml:"type" validate:"omitempty,oneof=free shrink grow"`
}

type ProjectionConfig struct {
	Enabled bool    `yaml:"enabled"`
	Soft    bool    `yaml:"soft"`
	Linear  float64 `yaml:"linear" validate:"gte=0,lte=1"`
	Angular float64 `yaml:"angular" validate:"gte=0,lte=1"`
}

type JointConfig struct {
	Name   string `yaml:"name"`
	Child  string `yaml:"child" validate:"required"`
	Parent string `yaml:"parent" validate:"required"`
	// Anchor is the world space joint frame at build time
	Anchor         mgl64.Vec3 `yaml:"anchor"`
	AnchorRotation Rotation   `yaml:"anchor_rotation"`

	Stiffness          float64 `yaml:"stiffness" validate:"gte=0,lte=1"`
	ParentInvMassScale float64 `yaml:"parent_inv_mass_scale" validate:"gte=0"`
	Disabled           bool    `yaml:"disabled"`

	Linear     LinearConfig     `yaml:"linear"`
	Angular    AngularConfig    `yaml:"angular"`
	Break      BreakConfig      `yaml:"break"`
	Plasticity PlasticityConfig `yaml:"plasticity"`
	Projection ProjectionConfig `yaml:"projection"`
}

func DefaultWorld() WorldConfig {
	return WorldConfig{
		Gravity:           mgl64.Vec3{0, tendon.DEFAULT_GRAVITY_ACCELERATION, 0},
		Substeps:          tendon.DEFAULT_SUBSTEPS,
		Iterations:        tendon.DEFAULT_ITERATIONS,
		PushOutIterations: tendon.DEFAULT_PUSHOUT_ITERATIONS,
		Workers:           tendon.DEFAULT_WORKERS,
		SolverType:        constraint.SolverStandardPbd.String(),
		SleepTime:         tendon.DEFAULT_SLEEP_TIME,
		SleepVelocity:     tendon.DEFAULT_SLEEP_VELOCITY,
	}
}

func DefaultBody() BodyConfig {
	return BodyConfig{
		Type:    "dynamic",
		Shape:   ShapeConfig{Type: "sphere", Radius: 0.5},
		Density: 1,
	}
}

// DefaultJoint is a ball joint: linear axes locked, angular axes free
func DefaultJoint() JointConfig {
	return JointConfig{
		Stiffness:          1,
		ParentInvMassScale: 1,
		Linear: LinearConfig{
			Motion: [3]string{"locked", "locked", "locked"},
		},
		Angular: AngularConfig{
			Motion: [3]string{"free", "free", "free"},
		},
	}
}

func DefaultScene() Scene {
	return Scene{
		World:  DefaultWorld(),
		Solver: constraint.DefaultJointSolverSettings(),
	}
}

// UnmarshalYAML keeps the defaults of the keys missing from the node
func (b *BodyConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain BodyConfig
	p := plain(DefaultBody())
	if err := value.Decode(&p); err != nil {
		return err
	}

	*b = BodyConfig(p)
	return nil
}

// UnmarshalYAML keeps the defaults of the keys missing from the node
func (j *JointConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain JointConfig
	p := plain(DefaultJoint())
	if err := value.Decode(&p); err != nil {
		return err
	}

	*j = JointConfig(p)
	return nil
}

// Parse decodes a scene and validates it
func Parse(data []byte) (*Scene, error) {
	scene := DefaultScene()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scene); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyScene
		}
		return nil, fmt.Errorf("decode scene: %w", err)
	}

	if err := scene.Validate(); err != nil {
		return nil, err
	}

	return &scene, nil
}

// Load reads and parses the scene file at path
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}

	scene, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scene, nil
}

// Validate checks the field ranges, then the body references of the joints
func (s *Scene) Validate() error {
	if err := sceneValidate.Struct(s); err != nil {
		return fmt.Errorf("validate scene: %w", err)
	}

	bodies := make(map[string]struct{}, len(s.Bodies))
	for _, body := range s.Bodies {
		if _, ok := bodies[body.Name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateBody, body.Name)
		}
		bodies[body.Name] = struct{}{}

		shape, err := body.Shape.build()
		if err != nil {
			return fmt.Errorf("body %q: %w", body.Name, err)
		}
		if body.Type == "dynamic" && shape.ComputeMass(1) <= 0 {
			return fmt.Errorf("body %q: %w", body.Name, ErrEmptyShape)
		}
	}

	joints := make(map[string]struct{}, len(s.Joints))
	for i, joint := range s.Joints {
		name := joint.name(i)
		if _, ok := joints[name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateJoint, name)
		}
		joints[name] = struct{}{}

		for _, body := range []string{joint.Child, joint.Parent} {
			if _, ok := bodies[body]; !ok {
				return fmt.Errorf("joint %q: %w: %q", name, ErrUnknownBody, body)
			}
		}
		if joint.Child == joint.Parent {
			return fmt.Errorf("joint %q: %w", name, ErrSelfJoint)
		}
	}

	return nil
}

// name returns the joint name, or a name from its position in the scene
func (j *JointConfig) name(index int) string {
	if j.Name != "" {
		return j.Name
	}
	return fmt.Sprintf("joint-%d", index)
}
