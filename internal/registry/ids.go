package registry

// Channel ids of the built-in table.
const (
	TimeInternal   = 0
	TimeAuxDAQ     = 1
	FlagCollection = 2
	TestLED        = 3

	SpeedEngine     = 10
	SpeedSecondary  = 11
	SpeedFrontLeft  = 12
	SpeedFrontRight = 13

	EngineEncoder    = 20
	SecondaryEncoder = 21

	BrakeFront = 30
	BrakeRear  = 31

	LDSFrontLeft  = 40
	LDSFrontRight = 41
	LDSRearLeft   = 42
	LDSRearRight  = 43

	IMUAccel = 50
	IMUGyro  = 51

	GPSFix = 60

	TempCVT = 70
)

// DefaultVersion names the built-in registry generation.
const DefaultVersion = "multi-field-2"

// Value names referenced outside the registry.
const (
	NameTimeInternal   = "time_internal_seconds"
	NameSpeedEngine    = "speed_engine_rpm"
	NameSpeedSecondary = "speed_secondary_rpm"
	NamePositionEngine = "position_engine_ticks"
	NameBrakeFront     = "brake_pressure_front_psi"
	NameBrakeRear      = "brake_pressure_rear_psi"
	NameTestLED        = "test_led"
	NameFlagCollection = "flag_data_collection"
	NameGPSLatitude    = "gps_latitude"
	NameGPSLongitude   = "gps_longitude"
)

// Default returns the canonical built-in registry.
func Default() *Registry {
	r, err := New(DefaultVersion, defaultEntries()...)
	if err != nil {
		panic(err)
	}
	return r
}

func defaultEntries() []Entry {
	return []Entry{
		Single(TimeInternal, Field(NameTimeInternal, 4, Time{}, AsFloat(), InternalOnly(), WithDisplayName("Elapsed Time"))),
		Single(TimeAuxDAQ, Field("time_auxdaq_us", 4, Time{}, WithUnit("microseconds", "us"), NotPlottable())),
		Single(FlagCollection, Field(NameFlagCollection, 1, Flag{}, NotPlottable())),
		Single(TestLED, Field(NameTestLED, 1, Flag{}, NotPlottable())),

		Single(SpeedEngine, Field(NameSpeedEngine, 2, Speed{PulsesPerRev: 1}, WithDisplayName("Engine Speed"))),
		Single(SpeedSecondary, Field(NameSpeedSecondary, 2, Speed{PulsesPerRev: 6}, WithDisplayName("Secondary Speed"))),
		Single(SpeedFrontLeft, Field("speed_front_left_rpm", 2, Speed{PulsesPerRev: 8})),
		Single(SpeedFrontRight, Field("speed_front_right_rpm", 2, Speed{PulsesPerRev: 8})),

		Composite(EngineEncoder, "engine_encoder",
			Field("encoder_engine_rpm", 4, Speed{PulsesPerRev: 24}),
			Field(NamePositionEngine, 4, Position{PulsesPerRev: 24}),
			Field("encoder_engine_status", 2, Flag{}, NotPlottable()),
		),
		Composite(SecondaryEncoder, "secondary_encoder",
			Field("encoder_secondary_rpm", 4, Speed{PulsesPerRev: 24}),
			Field("position_secondary_ticks", 4, Position{PulsesPerRev: 24}),
			Field("encoder_secondary_status", 2, Flag{}, NotPlottable()),
		),

		Single(BrakeFront, Field(NameBrakeFront, 2, Pressure{MaxPSI: 2000}, WithDisplayName("Front Brake Pressure"))),
		Single(BrakeRear, Field(NameBrakeRear, 2, Pressure{MaxPSI: 2000}, WithDisplayName("Rear Brake Pressure"))),

		Single(LDSFrontLeft, Field("lds_front_left_mm", 2, Generic{}, WithUnit("millimeters", "mm"))),
		Single(LDSFrontRight, Field("lds_front_right_mm", 2, Generic{}, WithUnit("millimeters", "mm"))),
		Single(LDSRearLeft, Field("lds_rear_left_mm", 2, Generic{}, WithUnit("millimeters", "mm"))),
		Single(LDSRearRight, Field("lds_rear_right_mm", 2, Generic{}, WithUnit("millimeters", "mm"))),

		Composite(IMUAccel, "imu_accel",
			Field("imu_accel_x_g", 4, Generic{}, AsFloat(), WithUnit("standard gravity", "g")),
			Field("imu_accel_y_g", 4, Generic{}, AsFloat(), WithUnit("standard gravity", "g")),
			Field("imu_accel_z_g", 4, Generic{}, AsFloat(), WithUnit("standard gravity", "g")),
		),
		Composite(IMUGyro, "imu_gyro",
			Field("imu_gyro_x_dps", 4, Generic{}, AsFloat(), WithUnit("degrees per second", "dps")),
			Field("imu_gyro_y_dps", 4, Generic{}, AsFloat(), WithUnit("degrees per second", "dps")),
			Field("imu_gyro_z_dps", 4, Generic{}, AsFloat(), WithUnit("degrees per second", "dps")),
		),

		Composite(GPSFix, "gps_fix",
			Field(NameGPSLatitude, 8, Generic{}, AsFloat(), WithUnit("degrees", "deg")),
			Field(NameGPSLongitude, 8, Generic{}, AsFloat(), WithUnit("degrees", "deg")),
			Field("gps_speed_mph", 4, Generic{}, AsFloat(), WithUnit("miles per hour", "mph")),
		),

		Single(TempCVT, Field("temperature_cvt_c", 4, Generic{}, AsFloat(), WithUnit("degrees celsius", "C"))),
	}
}
