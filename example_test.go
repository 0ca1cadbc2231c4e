package wirekit_test

import (
	"fmt"
	"log"

	"github.com/junioryono/wirekit"
)

type Engine interface {
	Cylinders() int
}

type V8 struct{ cylinders int }

func (e *V8) Cylinders() int { return e.cylinders }

type V6 struct{ cylinders int }

func (e *V6) Cylinders() int { return e.cylinders }

type Car struct {
	Engine Engine
}

func NewV8(cylinders int) *V8 { return &V8{cylinders: cylinders} }
func NewV6(cylinders int) *V6 { return &V6{cylinders: cylinders} }
func NewCar(engine Engine) *Car { return &Car{Engine: engine} }

var engines = wirekit.NewModule("engines",
	wirekit.Use[Engine](NewV8,
		wirekit.Named("v8"),
		wirekit.ParamNames("cylinders"),
		wirekit.With("cylinders", 8),
		wirekit.WithLifecycle(wirekit.Singleton)),
	wirekit.Use[Engine](NewV6,
		wirekit.Named("v6"),
		wirekit.ParamNames("cylinders"),
		wirekit.With("cylinders", 6)),
	wirekit.Use[*Car](NewCar),
)

// Example shows registering two engines and resolving the default and a
// named one.
func Example() {
	g, err := wirekit.Build(engines)
	if err != nil {
		log.Fatal(err)
	}

	c, err := wirekit.New(g)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	car := wirekit.MustResolve[*Car](c)
	v6 := wirekit.MustResolveNamed[Engine](c, "v6")

	fmt.Println(car.Engine.Cylinders(), v6.Cylinders())
	// Output: 8 6
}

// ExampleContainer_SetProfile shows a profile changing the default engine.
func ExampleContainer_SetProfile() {
	g, err := wirekit.Build(engines, wirekit.Profile[Engine]("economy", "v6"))
	if err != nil {
		log.Fatal(err)
	}

	c, err := wirekit.New(g)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	fmt.Println(wirekit.MustResolve[*Car](c).Engine.Cylinders())

	if err := c.SetProfile("economy"); err != nil {
		log.Fatal(err)
	}
	fmt.Println(wirekit.MustResolve[*Car](c).Engine.Cylinders())
	// Output:
	// 8
	// 6
}

// ExampleResolveWith shows explicit arguments building a one-off object.
func ExampleResolveWith() {
	g, err := wirekit.Build(engines)
	if err != nil {
		log.Fatal(err)
	}

	c, err := wirekit.New(g)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	custom, err := wirekit.ResolveWith[Engine](c, wirekit.NewArgs().With("cylinders", 12))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(custom.Cylinders(), wirekit.MustResolve[Engine](c).Cylinders())
	// Output: 12 8
}

// ExampleContainer_Validate shows configuration errors found before any
// object is built.
func ExampleContainer_Validate() {
	g, err := wirekit.Build(wirekit.Use[*Car](NewCar))
	if err != nil {
		log.Fatal(err)
	}

	c, err := wirekit.New(g)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	fmt.Println(c.Validate() != nil)
	// Output: true
}
