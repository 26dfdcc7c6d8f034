package result

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/hatlonely/tinymodel/rdb/query"
	"github.com/hatlonely/tinymodel/rdb/schema"
)

func newTestRegistry() *schema.Registry {
	r := schema.NewRegistry()
	r.MustRegister("User", func() schema.Declaration {
		return schema.Declaration{
			{Name: "userid", Definition: "id"},
			{Name: "username", Definition: "varchar"},
		}
	})
	r.MustRegister("Favourite", func() schema.Declaration {
		return schema.Declaration{
			{Name: "favouriteid", Definition: "id"},
			{Name: "userid", Definition: "int"},
			{Name: "thingid", Definition: "int"},
		}
	})
	r.MustRegister("Thing", func() schema.Declaration {
		return schema.Declaration{
			{Name: "thingid", Definition: "id"},
			{Name: "thingname", Definition: "varchar"},
		}
	})
	r.MustRegister("Pet", func() schema.Declaration {
		return schema.Declaration{
			{Name: "petid", Definition: "id"},
			{Name: "userid", Definition: "int"},
			{Name: "name", Definition: "varchar"},
		}
	})
	return r
}

func mustPlan(kind string, joins ...*query.Join) *query.Plan {
	plan, err := query.NewPlan(newTestRegistry(), kind, joins...)
	if err != nil {
		panic(err)
	}
	return plan
}

func ids(entities []*Entity, column string) []int64 {
	result := make([]int64, 0, len(entities))
	for _, e := range entities {
		id, _ := e.Int(column)
		result = append(result, id)
	}
	return result
}

func merge(parts ...Row) Row {
	row := Row{}
	for _, part := range parts {
		for k, v := range part {
			row[k] = v
		}
	}
	return row
}

func userRow(id int, name string) Row {
	return Row{"a_userid": id, "a_username": name}
}

func favRow(alias string, id any, userid any, thingid any) Row {
	return Row{alias + "_favouriteid": id, alias + "_userid": userid, alias + "_thingid": thingid}
}

func petRow(alias string, id any, userid any) Row {
	var name any
	if id != nil {
		name = "pet"
	}
	return Row{alias + "_petid": id, alias + "_userid": userid, alias + "_name": name}
}

func thingRow(alias string, id any, name any) Row {
	return Row{alias + "_thingid": id, alias + "_thingname": name}
}

type errCursor struct {
	rows []Row
}

func (c *errCursor) Next() (Row, error) {
	if len(c.rows) == 0 {
		return nil, errors.New("connection reset")
	}
	row := c.rows[0]
	c.rows = c.rows[1:]
	return row, nil
}

func TestReconstructSingleTable(t *testing.T) {
	Convey("测试单表重建", t, func() {
		plan := mustPlan("User")

		Convey("多行", func() {
			entities, err := Reconstruct(plan, NewSliceCursor(
				userRow(1, "ben"), userRow(2, "bob"), userRow(3, "amy"),
			))
			So(err, ShouldBeNil)
			So(ids(entities, "userid"), ShouldResemble, []int64{1, 2, 3})
			name, ok := entities[1].String("username")
			So(ok, ShouldBeTrue)
			So(name, ShouldEqual, "bob")
		})

		Convey("空结果", func() {
			entities, err := Reconstruct(plan, NewSliceCursor())
			So(err, ShouldBeNil)
			So(entities, ShouldBeEmpty)
		})

		Convey("基表列全为空时停止", func() {
			entities, err := Reconstruct(plan, NewSliceCursor(
				userRow(1, "ben"),
				Row{"a_userid": nil, "a_username": nil},
				userRow(2, "bob"),
			))
			So(err, ShouldBeNil)
			So(ids(entities, "userid"), ShouldResemble, []int64{1})
		})

		Convey("驱动返回字节切片", func() {
			entities, err := Reconstruct(plan, NewSliceCursor(
				Row{"a_userid": []byte("7"), "a_username": []byte("ben")},
			))
			So(err, ShouldBeNil)
			So(entities[0].Fields, ShouldResemble, map[string]any{"userid": int64(7), "username": "ben"})
		})

		Convey("游标出错", func() {
			_, err := Reconstruct(plan, &errCursor{rows: []Row{userRow(1, "ben")}})
			So(err, ShouldNotBeNil)
			So(errors.Is(err, io.EOF), ShouldBeFalse)
		})

		Convey("无法转换的值", func() {
			_, err := Reconstruct(plan, NewSliceCursor(Row{"a_userid": "seven", "a_username": "ben"}))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestReconstructFanOut(t *testing.T) {
	Convey("测试兄弟连接扇出", t, func() {
		plan := mustPlan("User",
			query.NewJoin("Favourite", query.On("userid")),
			query.NewJoin("Pet", query.On("userid")),
		)

		// 每个用户产生 len(favs) x len(pets) 行，pet 变化最快
		build := func(users map[int][2][]int, order []int) []Row {
			var rows []Row
			for _, uid := range order {
				favs, pets := users[uid][0], users[uid][1]
				for _, f := range favs {
					for _, p := range pets {
						rows = append(rows, merge(userRow(uid, "u"), favRow("b", f, uid, nil), petRow("c", p, uid)))
					}
				}
			}
			return rows
		}

		Convey("n1 x n2 行还原为 n1 和 n2 个子实体", func() {
			for _, tc := range []struct {
				favs []int
				pets []int
			}{
				{[]int{10}, []int{20}},
				{[]int{10, 11, 12}, []int{20, 21}},
				{[]int{10, 11}, []int{20, 21, 22}},
				{[]int{10}, []int{20, 21, 22, 23}},
				{[]int{10, 11, 12, 13}, []int{20}},
				{[]int{10, 11, 12}, []int{20, 21, 22}},
			} {
				rows := build(map[int][2][]int{1: {tc.favs, tc.pets}}, []int{1})
				r := NewReconstructor(plan)
				entities, err := r.Reconstruct(NewSliceCursor(rows...))
				So(err, ShouldBeNil)
				So(len(entities), ShouldEqual, 1)

				favs := make([]int64, 0, len(tc.favs))
				for _, f := range tc.favs {
					favs = append(favs, int64(f))
				}
				pets := make([]int64, 0, len(tc.pets))
				for _, p := range tc.pets {
					pets = append(pets, int64(p))
				}
				So(ids(entities[0].Related("favourites"), "favouriteid"), ShouldResemble, favs)
				So(ids(entities[0].Related("pets"), "petid"), ShouldResemble, pets)
				So(r.Stats().Rows, ShouldBeLessThanOrEqualTo, len(rows))
			}
		})

		Convey("多个基表行之间重置停滞状态", func() {
			rows := build(map[int][2][]int{
				1: {{10, 11, 12}, {20, 21}},
				2: {{13, 14}, {22, 23, 24}},
				3: {{15}, {25, 26}},
			}, []int{1, 2, 3})

			r := NewReconstructor(plan)
			entities, err := r.Reconstruct(NewSliceCursor(rows...))
			So(err, ShouldBeNil)
			So(ids(entities, "userid"), ShouldResemble, []int64{1, 2, 3})
			So(ids(entities[0].Related("favourites"), "favouriteid"), ShouldResemble, []int64{10, 11, 12})
			So(ids(entities[0].Related("pets"), "petid"), ShouldResemble, []int64{20, 21})
			So(ids(entities[1].Related("favourites"), "favouriteid"), ShouldResemble, []int64{13, 14})
			So(ids(entities[1].Related("pets"), "petid"), ShouldResemble, []int64{22, 23, 24})
			So(ids(entities[2].Related("favourites"), "favouriteid"), ShouldResemble, []int64{15})
			So(ids(entities[2].Related("pets"), "petid"), ShouldResemble, []int64{25, 26})

			So(r.Stats().Rows, ShouldEqual, len(rows))
			So(r.Stats().Skipped, ShouldBeGreaterThan, 0)
		})

		Convey("favourite 变化最快的行顺序", func() {
			var rows []Row
			for _, u := range []struct {
				id   int
				favs []int
				pets []int
			}{
				{1, []int{10, 11, 12}, []int{20, 21, 22}},
				{2, []int{13, 14}, []int{23, 24, 25}},
				{3, []int{15}, []int{26, 27}},
			} {
				for _, p := range u.pets {
					for _, f := range u.favs {
						rows = append(rows, merge(userRow(u.id, "u"), favRow("b", f, u.id, nil), petRow("c", p, u.id)))
					}
				}
			}

			r := NewReconstructor(plan)
			entities, err := r.Reconstruct(NewSliceCursor(rows...))
			So(err, ShouldBeNil)
			So(ids(entities, "userid"), ShouldResemble, []int64{1, 2, 3})
			So(ids(entities[0].Related("favourites"), "favouriteid"), ShouldResemble, []int64{10, 11, 12})
			So(ids(entities[0].Related("pets"), "petid"), ShouldResemble, []int64{20, 21, 22})
			So(ids(entities[1].Related("favourites"), "favouriteid"), ShouldResemble, []int64{13, 14})
			So(ids(entities[1].Related("pets"), "petid"), ShouldResemble, []int64{23, 24, 25})
			So(ids(entities[2].Related("favourites"), "favouriteid"), ShouldResemble, []int64{15})
			So(ids(entities[2].Related("pets"), "petid"), ShouldResemble, []int64{26, 27})

			// 用户 1 跳过 4 行，用户 2 跳过 2 行
			So(r.Stats().Rows, ShouldEqual, len(rows))
			So(r.Stats().Skipped, ShouldEqual, 6)
		})

		Convey("左连接未命中时子集合为空", func() {
			rows := []Row{
				merge(userRow(1, "u"), favRow("b", 10, 1, nil), petRow("c", nil, nil)),
				merge(userRow(1, "u"), favRow("b", 11, 1, nil), petRow("c", nil, nil)),
				merge(userRow(2, "u"), favRow("b", nil, nil, nil), petRow("c", 20, 2)),
			}
			entities, err := Reconstruct(plan, NewSliceCursor(rows...))
			So(err, ShouldBeNil)
			So(len(entities), ShouldEqual, 2)
			So(ids(entities[0].Related("favourites"), "favouriteid"), ShouldResemble, []int64{10, 11})
			So(entities[0].Related("pets"), ShouldBeEmpty)
			So(entities[1].Related("favourites"), ShouldBeEmpty)
			So(ids(entities[1].Related("pets"), "petid"), ShouldResemble, []int64{20})
		})
	})
}

func TestReconstructNested(t *testing.T) {
	Convey("测试多层连接", t, func() {
		plan := mustPlan("User",
			query.NewJoin("Favourite", query.On("userid"),
				query.NewJoin("Thing", query.On("thingid")),
			),
			query.NewJoin("Pet", query.On("userid")),
		)

		Convey("孙实体只挂在所属的子实体下", func() {
			// favourite 10 -> things 100, 101；favourite 11 -> thing 100；两只宠物
			type fav struct {
				id     int
				things []int
			}
			var rows []Row
			for _, f := range []fav{{10, []int{100, 101}}, {11, []int{100}}, {12, []int{102, 103, 104}}} {
				for _, th := range f.things {
					for _, p := range []int{20, 21} {
						rows = append(rows, merge(
							userRow(1, "u"),
							favRow("b", f.id, 1, th),
							thingRow("c", th, "thing"),
							petRow("d", p, 1),
						))
					}
				}
			}

			entities, err := Reconstruct(plan, NewSliceCursor(rows...))
			So(err, ShouldBeNil)
			So(len(entities), ShouldEqual, 1)

			favs := entities[0].Related("favourites")
			So(ids(favs, "favouriteid"), ShouldResemble, []int64{10, 11, 12})
			So(ids(favs[0].Related("things"), "thingid"), ShouldResemble, []int64{100, 101})
			So(ids(favs[1].Related("things"), "thingid"), ShouldResemble, []int64{100})
			So(ids(favs[2].Related("things"), "thingid"), ShouldResemble, []int64{102, 103, 104})
			So(ids(entities[0].Related("pets"), "petid"), ShouldResemble, []int64{20, 21})
		})

		Convey("兄弟连接在外层循环", func() {
			// pet 在最外层，每只宠物重复 favourite -> thing 的全部组合
			var rows []Row
			for _, p := range []int{20, 21, 22} {
				for _, f := range []struct {
					id     int
					things []int
				}{{10, []int{100, 101}}, {11, []int{100}}} {
					for _, th := range f.things {
						rows = append(rows, merge(
							userRow(1, "u"),
							favRow("b", f.id, 1, th),
							thingRow("c", th, "thing"),
							petRow("d", p, 1),
						))
					}
				}
			}

			entities, err := Reconstruct(plan, NewSliceCursor(rows...))
			So(err, ShouldBeNil)
			So(len(entities), ShouldEqual, 1)

			favs := entities[0].Related("favourites")
			So(ids(favs, "favouriteid"), ShouldResemble, []int64{10, 11})
			So(ids(favs[0].Related("things"), "thingid"), ShouldResemble, []int64{100, 101})
			So(ids(favs[1].Related("things"), "thingid"), ShouldResemble, []int64{100})
			So(ids(entities[0].Related("pets"), "petid"), ShouldResemble, []int64{20, 21, 22})
		})

		Convey("Octopus", func() {
			rows := []Row{
				merge(userRow(2, "bhallstein"), favRow("b", 3, 2, 4), thingRow("c", 4, "Octopus"), petRow("d", nil, nil)),
			}
			entities, err := Reconstruct(plan, NewSliceCursor(rows...))
			So(err, ShouldBeNil)
			So(len(entities), ShouldEqual, 1)

			things := entities[0].Related("favourites")[0].Related("things")
			So(len(things), ShouldEqual, 1)
			name, _ := things[0].String("thingname")
			So(name, ShouldEqual, "Octopus")
		})
	})
}

func TestEntityJSONAndScan(t *testing.T) {
	Convey("测试实体的 JSON 与结构体解码", t, func() {
		plan := mustPlan("User",
			query.NewJoin("Favourite", query.On("userid"),
				query.NewJoin("Thing", query.On("thingid")),
			),
			query.NewJoin("Pet", query.On("userid")),
		)
		entities, err := Reconstruct(plan, NewSliceCursor(
			merge(userRow(2, "bhallstein"), favRow("b", 3, 2, 4), thingRow("c", 4, "Octopus"), petRow("d", nil, nil)),
		))
		So(err, ShouldBeNil)

		Convey("JSON 按列声明顺序输出", func() {
			buf, err := json.Marshal(entities[0])
			So(err, ShouldBeNil)
			So(string(buf), ShouldEqual, `{"userid":2,"username":"bhallstein",`+
				`"favourites":[{"favouriteid":3,"userid":2,"thingid":4,"things":[{"thingid":4,"thingname":"Octopus"}]}],`+
				`"pets":[]}`)
		})

		Convey("解码到结构体", func() {
			type Thing struct {
				ThingID   int    `rdb:"thingid"`
				ThingName string `rdb:"thingname"`
			}
			type Favourite struct {
				FavouriteID int64    `rdb:"favouriteid"`
				ThingID     *int     `rdb:"thingid"`
				Things      []*Thing `rdb:"things"`
			}
			type Pet struct {
				PetID int64 `rdb:"petid"`
			}
			type User struct {
				UserID     int64       `rdb:"userid"`
				Username   string      `rdb:"username"`
				Favourites []Favourite `rdb:"favourites"`
				Pets       []Pet       `rdb:"pets"`
				Ignored    string      `rdb:"-"`
			}

			var user User
			So(entities[0].Scan(&user), ShouldBeNil)
			So(user.UserID, ShouldEqual, 2)
			So(user.Username, ShouldEqual, "bhallstein")
			So(len(user.Favourites), ShouldEqual, 1)
			So(*user.Favourites[0].ThingID, ShouldEqual, 4)
			So(user.Favourites[0].Things[0].ThingName, ShouldEqual, "Octopus")
			So(user.Pets, ShouldBeEmpty)
		})

		Convey("类型不匹配", func() {
			var bad struct {
				UserID string `rdb:"userid"`
			}
			So(entities[0].Scan(&bad), ShouldNotBeNil)
			So(entities[0].Scan(bad), ShouldNotBeNil)
		})
	})
}
